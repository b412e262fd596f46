package vecstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	applog "startuplens/internal/platform/log"
)

var (
	// ErrNotReady 索引文件尚不存在(还没有完成过任何一次摄取)。
	ErrNotReady = errors.New("vector index not ready")
	// ErrCorrupted 索引与元数据不一致,需要等待下一次摄取重建。
	ErrCorrupted = errors.New("vector index corrupted")
)

// Store 管理索引文件对(向量索引 + JSONL 元数据)的读写与原子替换。
// 写入走"临时文件 + 两次重命名"的换代流程,读取走一致性快照。
type Store struct {
	indexPath string
	metaPath  string

	mu   sync.RWMutex
	snap *Snapshot
}

// NewStore 在 dir 下管理 startups.index 与 meta.jsonl 文件对。
func NewStore(dir string) *Store {
	return &Store{
		indexPath: filepath.Join(dir, "startups.index"),
		metaPath:  filepath.Join(dir, "meta.jsonl"),
	}
}

// Snapshot 一次加载得到的只读索引视图。文件不换代则被复用,
// 因此指针相等即代表同一索引版本。
type Snapshot struct {
	Index   *Index
	Entries []IndexEntry

	stamp fileStamp
}

// Version 返回快照的版本标识,索引换代后必然变化,
// 用作检索缓存键的组成部分。
func (sn *Snapshot) Version() string {
	return fmt.Sprintf("%x-%d", sn.stamp.metaMod.UnixNano(), len(sn.Entries))
}

type fileStamp struct {
	indexSize int64
	indexMod  time.Time
	metaSize  int64
	metaMod   time.Time
}

func (a fileStamp) equal(b fileStamp) bool {
	return a.indexSize == b.indexSize && a.indexMod.Equal(b.indexMod) &&
		a.metaSize == b.metaSize && a.metaMod.Equal(b.metaMod)
}

// Staged 已写入临时路径、等待换代的文件对。
type Staged struct {
	store    *Store
	indexTmp string
	metaTmp  string
	count    int
}

// Stage 将新索引与元数据写入同目录下的临时文件,并为元数据
// 按插入顺序补上序号。索引行数与元数据条数必须一致。
func (s *Store) Stage(ix *Index, entries []IndexEntry) (*Staged, error) {
	if ix.Ntotal() != len(entries) {
		return nil, fmt.Errorf("index has %d vectors but %d metadata entries", ix.Ntotal(), len(entries))
	}
	for i := range entries {
		entries[i].ID = i
	}

	indexTmp := s.indexPath + ".tmp"
	metaTmp := s.metaPath + ".tmp"
	if err := ix.Save(indexTmp); err != nil {
		return nil, err
	}
	if err := writeMeta(metaTmp, entries); err != nil {
		os.Remove(indexTmp)
		return nil, err
	}
	return &Staged{store: s, indexTmp: indexTmp, metaTmp: metaTmp, count: len(entries)}, nil
}

// Commit 依次将临时文件重命名到正式路径(索引在前、元数据在后),
// 然后使缓存的快照失效。两次重命名不是一个原子操作,
// 中途崩溃留下的不一致文件对由加载方检测。
func (st *Staged) Commit() error {
	if err := os.Rename(st.indexTmp, st.store.indexPath); err != nil {
		return fmt.Errorf("swap index file: %w", err)
	}
	if err := os.Rename(st.metaTmp, st.store.metaPath); err != nil {
		return fmt.Errorf("swap metadata file: %w", err)
	}

	st.store.mu.Lock()
	st.store.snap = nil
	st.store.mu.Unlock()
	return nil
}

// Discard 删除未提交的临时文件。Commit 之后调用无效果。
func (st *Staged) Discard() {
	os.Remove(st.indexTmp)
	os.Remove(st.metaTmp)
}

// LoadSnapshot 返回当前文件对的一致快照。文件未变化时复用缓存;
// 文件缺失返回 ErrNotReady;索引与元数据条数不一致返回 ErrCorrupted。
// 换代窗口内可能读到新旧混合的文件对,先重读一次再下结论。
func (s *Store) LoadSnapshot() (*Snapshot, error) {
	snap, err := s.loadOnce()
	if errors.Is(err, ErrCorrupted) {
		snap, err = s.loadOnce()
	}
	return snap, err
}

func (s *Store) loadOnce() (*Snapshot, error) {
	st, err := s.stat()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	cached := s.snap
	s.mu.RUnlock()
	if cached != nil && cached.stamp.equal(st) {
		return cached, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap != nil && s.snap.stamp.equal(st) {
		return s.snap, nil
	}

	ix, err := LoadIndex(s.indexPath)
	if err != nil {
		return nil, fmt.Errorf("load vector index: %w", err)
	}
	entries, err := readMeta(s.metaPath)
	if err != nil {
		return nil, err
	}
	if ix.Ntotal() != len(entries) {
		return nil, fmt.Errorf("%w: index has %d vectors, metadata has %d entries", ErrCorrupted, ix.Ntotal(), len(entries))
	}

	snap := &Snapshot{Index: ix, Entries: entries, stamp: st}
	s.snap = snap
	applog.Info("[VecStore] index snapshot loaded", "records", len(entries), "dim", ix.Dim(), "version", snap.Version())
	return snap, nil
}

func (s *Store) stat() (fileStamp, error) {
	fiIndex, err := os.Stat(s.indexPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileStamp{}, ErrNotReady
		}
		return fileStamp{}, fmt.Errorf("stat index file: %w", err)
	}
	fiMeta, err := os.Stat(s.metaPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileStamp{}, ErrNotReady
		}
		return fileStamp{}, fmt.Errorf("stat metadata file: %w", err)
	}
	return fileStamp{
		indexSize: fiIndex.Size(),
		indexMod:  fiIndex.ModTime(),
		metaSize:  fiMeta.Size(),
		metaMod:   fiMeta.ModTime(),
	}, nil
}
