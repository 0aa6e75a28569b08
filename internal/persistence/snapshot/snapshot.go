package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxelbarter.ai/internal/sim/inventory"
)

const (
	Version = 1
	Ext     = ".snap.zst"
)

var ErrNoSnapshot = errors.New("no snapshot found")

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	SavedAt int64  `json:"saved_at_unix_ms"`
}

// SnapshotV1 captures current inventory contents. It is not a trade log.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Agents []AgentV1 `json:"agents"`
}

type AgentV1 struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Slots []SlotV1 `json:"slots"`
}

type SlotV1 struct {
	Item  string `json:"item,omitempty"`
	Count int    `json:"count,omitempty"`
}

// Capture converts exported inventory state into a snapshot.
func Capture(worldID string, states []inventory.AgentState, now time.Time) SnapshotV1 {
	snap := SnapshotV1{
		Header: Header{Version: Version, WorldID: worldID, SavedAt: now.UnixMilli()},
		Agents: make([]AgentV1, 0, len(states)),
	}
	for _, st := range states {
		a := AgentV1{ID: st.ID, Name: st.Name, Slots: make([]SlotV1, len(st.Slots))}
		for i, sl := range st.Slots {
			if !sl.Empty() {
				a.Slots[i] = SlotV1{Item: sl.Item, Count: sl.Count}
			}
		}
		snap.Agents = append(snap.Agents, a)
	}
	return snap
}

// States is the inverse of Capture.
func (s SnapshotV1) States() []inventory.AgentState {
	out := make([]inventory.AgentState, 0, len(s.Agents))
	for _, a := range s.Agents {
		st := inventory.AgentState{ID: a.ID, Name: a.Name, Slots: make([]inventory.Stack, len(a.Slots))}
		for i, sl := range a.Slots {
			st.Slots[i] = inventory.Stack{Item: sl.Item, Count: sl.Count}
		}
		out = append(out, st)
	}
	return out
}

// FileName is the name WriteSnapshot callers use under a data dir; it sorts by time.
func FileName(worldID string, savedAt time.Time) string {
	return fmt.Sprintf("%s-%020d%s", worldID, savedAt.UnixMilli(), Ext)
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFile(tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeFile(path string, snap SnapshotV1) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 64*1024)
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var hdr Header
	if err := json.Unmarshal(line, &hdr); err != nil {
		return snap, fmt.Errorf("decode header: %w", err)
	}
	if hdr.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", hdr.Version)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// LatestSnapshot returns the newest snapshot file in dir by name order.
func LatestSnapshot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoSnapshot
		}
		return "", err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), Ext) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", ErrNoSnapshot
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}
