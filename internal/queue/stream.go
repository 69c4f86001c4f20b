package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/logward/logward/internal/model"
	"github.com/logward/logward/internal/utils/fileutil"
	"github.com/logward/logward/internal/utils/logger"
)

// trimChunk is the approximate-trim slack: the stream only trims once it
// exceeds MaxLen by at least this many entries, so trimming happens in
// batches instead of on every append.
// trimChunk 是近似裁剪的松弛量：流长度超出 MaxLen 至少这么多条时才裁剪，
// 因此裁剪按批进行而不是每次追加都裁剪。
const trimChunk = 64

// DurableStream is an in-process append-only log with named consumer groups,
// shaped after the Redis Streams surface: entry IDs "<ms>-<seq>", per-group
// delivery cursors, a pending (delivered-unacknowledged) ledger, stale-entry
// reclamation and approximate MaxLen trimming. Optional JSON snapshots give
// crash recovery; together with reclamation this yields at-least-once
// delivery.
// DurableStream 是带命名消费者组的进程内追加日志，仿照 Redis Streams 接口：
// 条目 ID 为 "<ms>-<seq>"，每组有投递游标、挂起（已投递未确认）台账、
// 过期条目认领和近似 MaxLen 裁剪。可选的 JSON 快照提供崩溃恢复；
// 与认领机制一起构成至少一次投递。
type DurableStream struct {
	mu      sync.Mutex
	name    string
	maxLen  int
	entries []streamEntry
	groups  map[string]*groupState

	lastMs  int64
	lastSeq int64

	enqueued  uint64
	delivered uint64
	acked     uint64
	dropped   uint64

	// waitCh is closed and replaced on every append to wake blocked readers.
	waitCh chan struct{}
	closed bool

	statePath string
	interval  time.Duration
	stop      chan struct{}
}

type streamEntry struct {
	id  string
	ms  int64
	seq int64
	raw model.RawRecord
}

type pendingEntry struct {
	consumer      string
	deliveredAt   time.Time
	deliveryCount int
}

type groupState struct {
	cursorMs  int64
	cursorSeq int64
	pending   map[string]*pendingEntry
}

// StreamOptions configures a DurableStream.
// StreamOptions 配置 DurableStream。
type StreamOptions struct {
	Name   string
	MaxLen int
	// StatePath enables JSON snapshot persistence when non-empty.
	StatePath string
	// SnapshotInterval drives the periodic snapshot writer (0 disables the
	// loop; the final snapshot on Close still happens).
	SnapshotInterval time.Duration
}

// NewDurableStream opens a stream, restoring state from the snapshot file if
// one exists.
// NewDurableStream 打开一个流，如存在快照文件则从中恢复状态。
func NewDurableStream(opts StreamOptions) *DurableStream {
	s := &DurableStream{
		name:      opts.Name,
		maxLen:    opts.MaxLen,
		groups:    make(map[string]*groupState),
		waitCh:    make(chan struct{}),
		statePath: opts.StatePath,
		interval:  opts.SnapshotInterval,
		stop:      make(chan struct{}),
	}

	if s.statePath != "" {
		s.loadSnapshot()
		if s.interval > 0 {
			go s.snapshotLoop()
		}
	}

	return s
}

// Append adds one record to the stream. Returns false once the stream is
// closed.
func (s *DurableStream) Append(raw model.RawRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	ms := time.Now().UnixMilli()
	if ms > s.lastMs {
		s.lastMs = ms
		s.lastSeq = 0
	} else {
		// Same millisecond or clock went backwards: keep IDs monotonic.
		// 同一毫秒或时钟回拨：保持 ID 单调。
		s.lastSeq++
	}

	entry := streamEntry{
		id:  fmt.Sprintf("%d-%d", s.lastMs, s.lastSeq),
		ms:  s.lastMs,
		seq: s.lastSeq,
		raw: raw,
	}
	s.entries = append(s.entries, entry)
	s.enqueued++

	s.trimLocked()
	s.wakeLocked()
	return true
}

// ReadGroup delivers up to maxCount entries past the group cursor to the
// given consumer, blocking up to blockTimeout for the first entry. Delivered
// entries are marked pending until acknowledged.
// ReadGroup 将组游标之后最多 maxCount 条条目投递给指定消费者，
// 为首条条目最多阻塞 blockTimeout。已投递条目在确认前保持挂起。
func (s *DurableStream) ReadGroup(ctx context.Context, group, consumer string, maxCount int, blockTimeout time.Duration) []Delivery {
	if maxCount <= 0 {
		return nil
	}

	deadline := time.Now().Add(blockTimeout)

	for {
		s.mu.Lock()
		g := s.ensureGroupLocked(group)
		batch := s.deliverLocked(g, consumer, maxCount)
		closed := s.closed
		ch := s.waitCh
		s.mu.Unlock()

		if len(batch) > 0 || closed || blockTimeout <= 0 {
			return batch
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-ch:
			timer.Stop()
		case <-timer.C:
			return nil
		}
	}
}

// Ack removes the given entries from the group's pending ledger. Unknown
// handles are ignored.
func (s *DurableStream) Ack(group string, handles []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[group]
	if !ok {
		return
	}
	for _, id := range handles {
		if _, pending := g.pending[id]; pending {
			delete(g.pending, id)
			s.acked++
		}
	}
}

// Claim reassigns entries pending longer than minIdle to the given consumer
// and returns them for reprocessing, oldest first. Each claim increments the
// entry's delivery count and resets its idle clock.
// Claim 将挂起超过 minIdle 的条目重新分配给指定消费者并返回以便重新处理，
// 按从旧到新排序。每次认领会递增条目的投递计数并重置其空闲时钟。
func (s *DurableStream) Claim(group, consumer string, minIdle time.Duration, maxCount int) []Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[group]
	if !ok {
		return nil
	}

	now := time.Now()
	stale := make([]string, 0)
	for id, p := range g.pending {
		if now.Sub(p.deliveredAt) >= minIdle {
			stale = append(stale, id)
		}
	}
	sortIDs(stale)
	if maxCount > 0 && len(stale) > maxCount {
		stale = stale[:maxCount]
	}

	out := make([]Delivery, 0, len(stale))
	for _, id := range stale {
		entry, found := s.entryByIDLocked(id)
		if !found {
			// Entry trimmed out from under its pending record.
			// 条目在挂起期间已被裁剪。
			delete(g.pending, id)
			s.dropped++
			continue
		}
		p := g.pending[id]
		p.consumer = consumer
		p.deliveredAt = now
		p.deliveryCount++
		out = append(out, Delivery{Handle: id, Raw: entry.raw})
	}
	return out
}

// PendingList returns up to count pending entries of the group, oldest first.
func (s *DurableStream) PendingList(group string, count int) []PendingInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[group]
	if !ok {
		return nil
	}

	ids := make([]string, 0, len(g.pending))
	for id := range g.pending {
		ids = append(ids, id)
	}
	sortIDs(ids)
	if count > 0 && len(ids) > count {
		ids = ids[:count]
	}

	now := time.Now()
	out := make([]PendingInfo, 0, len(ids))
	for _, id := range ids {
		p := g.pending[id]
		out = append(out, PendingInfo{
			ID:            id,
			Consumer:      p.consumer,
			Idle:          now.Sub(p.deliveredAt),
			DeliveryCount: p.deliveryCount,
		})
	}
	return out
}

// Info summarizes the stream state.
func (s *DurableStream) Info() StreamInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := StreamInfo{
		Name:   s.name,
		Length: len(s.entries),
		MaxLen: s.maxLen,
	}
	if len(s.entries) > 0 {
		info.FirstID = s.entries[0].id
		info.LastID = s.entries[len(s.entries)-1].id
	}

	names := make([]string, 0, len(s.groups))
	for name := range s.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		g := s.groups[name]
		info.Groups = append(info.Groups, GroupInfo{
			Name:          name,
			Pending:       len(g.pending),
			LastDelivered: fmt.Sprintf("%d-%d", g.cursorMs, g.cursorSeq),
		})
	}
	return info
}

// Recent returns up to n of the newest entries' records, oldest first.
func (s *DurableStream) Recent(n int) []model.RawRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || n > len(s.entries) {
		n = len(s.entries)
	}
	if n == 0 {
		return nil
	}
	out := make([]model.RawRecord, 0, n)
	for _, e := range s.entries[len(s.entries)-n:] {
		out = append(out, e.raw)
	}
	return out
}

// Stats returns the stream-wide counters. Depth is the undelivered backlog
// of the given group.
func (s *DurableStream) statsFor(group string) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Enqueued:  s.enqueued,
		Delivered: s.delivered,
		Acked:     s.acked,
		Dropped:   s.dropped,
	}
	if g, ok := s.groups[group]; ok {
		st.Depth = len(s.entries) - s.searchLocked(g.cursorMs, g.cursorSeq)
	} else {
		st.Depth = len(s.entries)
	}
	return st
}

// Close stops the snapshot loop, writes a final snapshot and rejects further
// appends. Blocked readers wake up; remaining entries stay readable.
func (s *DurableStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.wakeLocked()
	s.mu.Unlock()

	close(s.stop)
	if s.statePath != "" {
		s.saveSnapshot()
	}
	return nil
}

// ensureGroupLocked creates the group on first use, delivering from the
// beginning of the stream.
func (s *DurableStream) ensureGroupLocked(group string) *groupState {
	g, ok := s.groups[group]
	if !ok {
		g = &groupState{pending: make(map[string]*pendingEntry)}
		s.groups[group] = g
	}
	return g
}

func (s *DurableStream) deliverLocked(g *groupState, consumer string, maxCount int) []Delivery {
	idx := s.searchLocked(g.cursorMs, g.cursorSeq)
	if idx >= len(s.entries) {
		return nil
	}

	end := idx + maxCount
	if end > len(s.entries) {
		end = len(s.entries)
	}

	now := time.Now()
	batch := make([]Delivery, 0, end-idx)
	for _, e := range s.entries[idx:end] {
		g.pending[e.id] = &pendingEntry{
			consumer:      consumer,
			deliveredAt:   now,
			deliveryCount: 1,
		}
		batch = append(batch, Delivery{Handle: e.id, Raw: e.raw})
		g.cursorMs = e.ms
		g.cursorSeq = e.seq
	}
	s.delivered += uint64(len(batch))
	return batch
}

// searchLocked returns the index of the first entry strictly after (ms, seq).
func (s *DurableStream) searchLocked(ms, seq int64) int {
	return sort.Search(len(s.entries), func(i int) bool {
		e := s.entries[i]
		return e.ms > ms || (e.ms == ms && e.seq > seq)
	})
}

func (s *DurableStream) entryByIDLocked(id string) (streamEntry, bool) {
	ms, seq, ok := parseID(id)
	if !ok {
		return streamEntry{}, false
	}
	// First entry at or after (ms, seq): search strictly-after the
	// predecessor position.
	idx := s.searchLocked(ms, seq-1)
	if idx < len(s.entries) && s.entries[idx].ms == ms && s.entries[idx].seq == seq {
		return s.entries[idx], true
	}
	return streamEntry{}, false
}

// trimLocked drops the oldest entries once the stream exceeds MaxLen by at
// least trimChunk. A trimmed entry that some group had not yet acknowledged
// counts as dropped; that is the documented at-least-once boundary.
func (s *DurableStream) trimLocked() {
	if s.maxLen <= 0 {
		return
	}
	excess := len(s.entries) - s.maxLen
	if excess < trimChunk {
		return
	}

	for _, e := range s.entries[:excess] {
		lost := false
		for _, g := range s.groups {
			if _, pending := g.pending[e.id]; pending {
				delete(g.pending, e.id)
				lost = true
			} else if e.ms > g.cursorMs || (e.ms == g.cursorMs && e.seq > g.cursorSeq) {
				// Never delivered to this group.
				lost = true
			}
		}
		if lost {
			s.dropped++
		}
	}

	n := copy(s.entries, s.entries[excess:])
	for i := n; i < len(s.entries); i++ {
		s.entries[i] = streamEntry{}
	}
	s.entries = s.entries[:n]
}

func (s *DurableStream) wakeLocked() {
	close(s.waitCh)
	s.waitCh = make(chan struct{})
}

func parseID(id string) (int64, int64, bool) {
	msStr, seqStr, ok := strings.Cut(id, "-")
	if !ok {
		return 0, 0, false
	}
	ms, err := strconv.ParseInt(msStr, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	seq, err := strconv.ParseInt(seqStr, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return ms, seq, true
}

func sortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		ims, iseq, _ := parseID(ids[i])
		jms, jseq, _ := parseID(ids[j])
		return ims < jms || (ims == jms && iseq < jseq)
	})
}

// StreamQueue binds a DurableStream to one consumer group identity,
// implementing the Queue contract for the worker.
// StreamQueue 将 DurableStream 绑定到一个消费者组身份，为 worker 实现 Queue 契约。
type StreamQueue struct {
	stream   *DurableStream
	group    string
	consumer string
}

// Bind attaches a group+consumer identity to the stream. An empty consumer
// derives a per-process name. The group is created on first use.
// Bind 将组和消费者身份附加到流上。消费者为空时派生每进程名称。
// 组在首次使用时创建。
func (s *DurableStream) Bind(group, consumer string) *StreamQueue {
	if consumer == "" {
		consumer = DeriveConsumerName()
	}
	s.mu.Lock()
	s.ensureGroupLocked(group)
	s.mu.Unlock()

	return &StreamQueue{stream: s, group: group, consumer: consumer}
}

// Consumer returns the bound consumer identity.
func (q *StreamQueue) Consumer() string { return q.consumer }

// Group returns the bound group name.
func (q *StreamQueue) Group() string { return q.group }

// Stream exposes the underlying stream for the observability surfaces.
func (q *StreamQueue) Stream() *DurableStream { return q.stream }

func (q *StreamQueue) Enqueue(raw model.RawRecord) bool {
	return q.stream.Append(raw)
}

func (q *StreamQueue) DequeueBatch(ctx context.Context, maxCount int, blockTimeout time.Duration) []Delivery {
	return q.stream.ReadGroup(ctx, q.group, q.consumer, maxCount, blockTimeout)
}

func (q *StreamQueue) Acknowledge(handles []string) {
	q.stream.Ack(q.group, handles)
}

func (q *StreamQueue) ReclaimStale(ctx context.Context, minIdle time.Duration, maxCount int) []Delivery {
	return q.stream.Claim(q.group, q.consumer, minIdle, maxCount)
}

func (q *StreamQueue) Stats() Stats {
	return q.stream.statsFor(q.group)
}

func (q *StreamQueue) Recent(n int) []model.RawRecord {
	return q.stream.Recent(n)
}

func (q *StreamQueue) Pending(count int) []PendingInfo {
	return q.stream.PendingList(q.group, count)
}

// Close closes the underlying stream.
func (q *StreamQueue) Close() error {
	return q.stream.Close()
}

// Snapshot persistence, adapted from the file-offset checkpoint pattern:
// periodic JSON state dumps plus a final dump on Close, written atomically.
// 快照持久化：周期性 JSON 状态转储加上 Close 时的最终转储，原子写入。

type streamSnapshot struct {
	Name      string                   `json:"name"`
	LastMs    int64                    `json:"last_ms"`
	LastSeq   int64                    `json:"last_seq"`
	Enqueued  uint64                   `json:"enqueued"`
	Delivered uint64                   `json:"delivered"`
	Acked     uint64                   `json:"acked"`
	Dropped   uint64                   `json:"dropped"`
	Entries   []snapshotEntry          `json:"entries"`
	Groups    map[string]snapshotGroup `json:"groups"`
}

type snapshotEntry struct {
	ID  string          `json:"id"`
	Raw model.RawRecord `json:"raw"`
}

type snapshotGroup struct {
	Cursor  string                     `json:"cursor"`
	Pending map[string]snapshotPending `json:"pending"`
}

type snapshotPending struct {
	Consumer      string    `json:"consumer"`
	DeliveredAt   time.Time `json:"delivered_at"`
	DeliveryCount int       `json:"delivery_count"`
}

func (s *DurableStream) snapshotLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.saveSnapshot()
		case <-s.stop:
			return
		}
	}
}

func (s *DurableStream) saveSnapshot() {
	log := logger.Get(nil)

	s.mu.Lock()
	snap := streamSnapshot{
		Name:      s.name,
		LastMs:    s.lastMs,
		LastSeq:   s.lastSeq,
		Enqueued:  s.enqueued,
		Delivered: s.delivered,
		Acked:     s.acked,
		Dropped:   s.dropped,
		Entries:   make([]snapshotEntry, 0, len(s.entries)),
		Groups:    make(map[string]snapshotGroup, len(s.groups)),
	}
	for _, e := range s.entries {
		snap.Entries = append(snap.Entries, snapshotEntry{ID: e.id, Raw: e.raw})
	}
	for name, g := range s.groups {
		sg := snapshotGroup{
			Cursor:  fmt.Sprintf("%d-%d", g.cursorMs, g.cursorSeq),
			Pending: make(map[string]snapshotPending, len(g.pending)),
		}
		for id, p := range g.pending {
			sg.Pending[id] = snapshotPending{
				Consumer:      p.consumer,
				DeliveredAt:   p.deliveredAt,
				DeliveryCount: p.deliveryCount,
			}
		}
		snap.Groups[name] = sg
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		log.Warnf("⚠️  Failed to marshal stream snapshot: %v", err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(s.statePath), 0755); err != nil {
		log.Warnf("⚠️  Failed to create snapshot directory: %v", err)
		return
	}

	if err := fileutil.AtomicWriteFile(s.statePath, data, 0644); err != nil {
		log.Warnf("⚠️  Failed to save stream snapshot: %v", err)
	}
}

func (s *DurableStream) loadSnapshot() {
	log := logger.Get(nil)

	data, err := os.ReadFile(s.statePath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("⚠️  Failed to load stream snapshot: %v", err)
		}
		return
	}

	var snap streamSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warnf("⚠️  Failed to parse stream snapshot, starting fresh: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastMs = snap.LastMs
	s.lastSeq = snap.LastSeq
	s.enqueued = snap.Enqueued
	s.delivered = snap.Delivered
	s.acked = snap.Acked
	s.dropped = snap.Dropped

	s.entries = s.entries[:0]
	for _, se := range snap.Entries {
		ms, seq, ok := parseID(se.ID)
		if !ok {
			continue
		}
		s.entries = append(s.entries, streamEntry{id: se.ID, ms: ms, seq: seq, raw: se.Raw})
	}

	for name, sg := range snap.Groups {
		g := &groupState{pending: make(map[string]*pendingEntry, len(sg.Pending))}
		if ms, seq, ok := parseID(sg.Cursor); ok {
			g.cursorMs = ms
			g.cursorSeq = seq
		}
		for id, sp := range sg.Pending {
			g.pending[id] = &pendingEntry{
				consumer:      sp.Consumer,
				deliveredAt:   sp.DeliveredAt,
				deliveryCount: sp.DeliveryCount,
			}
		}
		s.groups[name] = g
	}

	log.Infof("🔄 Restored stream snapshot: %d entries, %d groups", len(s.entries), len(s.groups))
}
