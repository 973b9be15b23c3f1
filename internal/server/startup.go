package server

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/yat-project/yat/internal/device"
	"github.com/yat-project/yat/internal/deviceid"
	"github.com/yat-project/yat/pkg/protocol"
)

const trackingFilePrefix = "tracking"

type trackingUpdatesFile struct {
	path    string
	modTime int64
}

// open scans the storage directory, registers one DeviceState per
// canonical-UUID-named marker file, then replays every tracking-prefixed
// file (oldest-modified first) through the fusion path, so the in-memory
// registry reflects durable history before any listener starts accepting
// connections. Grounded on java:Server.java#open.
func (s *Server) open() error {
	entries, err := os.ReadDir(s.cfg.StoragePath)
	if err != nil {
		return err
	}

	var replayFiles []trackingUpdatesFile
	for _, entry := range entries {
		name := entry.Name()
		if id, err := uuid.Parse(name); err == nil {
			s.registry.register(deviceid.DeviceId(id), device.New())
			continue
		}
		if strings.HasPrefix(name, trackingFilePrefix) {
			info, err := entry.Info()
			if err != nil {
				log.Printf("yat server: stat %s: %v", name, err)
				continue
			}
			replayFiles = append(replayFiles, trackingUpdatesFile{
				path:    filepath.Join(s.cfg.StoragePath, name),
				modTime: info.ModTime().UnixNano(),
			})
			continue
		}
		log.Printf("yat server: unknown file '%s'", name)
	}
	log.Printf("yat server: %d tracking devices", s.registry.count())

	sort.Slice(replayFiles, func(i, j int) bool { return replayFiles[i].modTime < replayFiles[j].modTime })
	for _, f := range replayFiles {
		s.replayFile(f.path)
	}
	return nil
}

// replayFile re-feeds every Tracking message stored in path through the
// same fusion path live traffic uses, discarding the fan-out result since
// there are no subscribers yet at startup.
func (s *Server) replayFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Printf("yat server: replay %s: %v", path, err)
		return
	}
	defer f.Close()

	count := 0
	for {
		msg, err := protocol.ReadMessage(f)
		if err != nil {
			break
		}
		if protocol.HeaderID(msg) != protocol.IDTracking {
			continue
		}
		if len(msg) < protocol.HeaderSize+16+8 {
			continue
		}
		did1, did2 := protocol.TrackingT2SDeviceID(msg)
		id := deviceid.FromHalves(did1, did2)
		dev := s.registry.lookup(id)
		if dev == nil {
			continue
		}
		sn := uint64(protocol.TrackingT2SSequenceNumber(msg))
		fields, _ := protocol.ParseTLVs(protocol.TrackingT2STLVs(msg))
		dev.ApplyTracking(sn, fields)
		count++
	}
	log.Printf("yat server: replayed %d tracking updates from %s", count, path)
}
