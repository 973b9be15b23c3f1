package linkbroker

import (
	"testing"
	"time"

	"github.com/yat-project/yat/internal/deviceid"
)

func TestIssueThenRedeem(t *testing.T) {
	b := New(time.Hour)
	defer b.Stop()

	id := deviceid.New()
	code := b.Issue(id)

	got, ok := b.Redeem(code)
	if !ok {
		t.Fatalf("expected Redeem to find the issued code")
	}
	if got != id {
		t.Fatalf("got %s, want %s", got, id)
	}
}

func TestRedeemUnknownCodeFails(t *testing.T) {
	b := New(time.Hour)
	defer b.Stop()
	if _, ok := b.Redeem(999999); ok {
		t.Fatalf("expected Redeem to fail for an unissued code")
	}
}

func TestRedeemIsOneShot(t *testing.T) {
	b := New(time.Hour)
	defer b.Stop()
	id := deviceid.New()
	code := b.Issue(id)

	if _, ok := b.Redeem(code); !ok {
		t.Fatalf("first redeem should succeed")
	}
	if _, ok := b.Redeem(code); ok {
		t.Fatalf("second redeem of the same code should fail")
	}
}

func TestRepeatIssueExtendsSameCode(t *testing.T) {
	b := New(time.Hour)
	defer b.Stop()
	id := deviceid.New()

	first := b.Issue(id)
	second := b.Issue(id)
	if first != second {
		t.Fatalf("repeat issue for the same device should return the same code, got %d then %d", first, second)
	}
}

func TestExpiredRequestIsSwept(t *testing.T) {
	b := New(30 * time.Millisecond)
	defer b.Stop()
	id := deviceid.New()
	code := b.Issue(id)

	time.Sleep(80 * time.Millisecond)

	if _, ok := b.Redeem(code); ok {
		t.Fatalf("expected the link request to have expired and been swept")
	}
}
