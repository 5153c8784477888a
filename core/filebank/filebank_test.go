package filebank_test

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"asset-bank/core/asset"
	"asset-bank/core/filebank"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blob struct {
	guid asset.Guid
	data string
	meta asset.Metadata
}

func (b *blob) SetGuid(g asset.Guid) { b.guid = g }

type fixture struct {
	root  string
	bank  *filebank.Bank
	loads map[string]int
}

func newFixture(t *testing.T, opts ...filebank.Option) *fixture {
	t.Helper()

	f := &fixture{root: t.TempDir(), loads: map[string]int{}}
	load := func(r io.Reader, meta asset.Metadata) (asset.Asset, error) {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		f.loads[string(data)]++
		return &blob{data: string(data), meta: meta}, nil
	}

	reg := asset.NewRegistry()
	require.NoError(t, reg.Register(asset.KindTexture, []string{".png", ".jpg"}, load))
	require.NoError(t, reg.Register(asset.KindText, []string{".txt"}, load))

	bank, err := filebank.New(f.root, reg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bank.Close() })
	f.bank = bank
	return f
}

func (f *fixture) write(t *testing.T, rel, content string) string {
	t.Helper()
	p := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestNew_RejectsMissingRoot(t *testing.T) {
	_, err := filebank.New(filepath.Join(t.TempDir(), "missing"), asset.NewRegistry())
	assert.Error(t, err)
}

func TestAddFile_CreatesSidecar(t *testing.T) {
	f := newFixture(t)
	p := f.write(t, "Textures/hero.png", "hero-v1")

	e := f.bank.AddFile("Textures/hero.png")
	require.NotNil(t, e)

	sc, err := filebank.ReadSidecar(p)
	require.NoError(t, err)
	assert.Equal(t, e.Guid(), sc.Guid)

	instance := f.bank.GetByName(asset.KindTexture, "Textures/hero")
	require.NotNil(t, instance)
	assert.Equal(t, "hero-v1", instance.(*blob).data)
	assert.Equal(t, e.Guid(), instance.(*blob).guid)
	assert.Equal(t, e.Guid().String(), instance.(*blob).meta["guid"])

	rel, ok := f.bank.PathOf(e.Guid())
	assert.True(t, ok)
	assert.Equal(t, "Textures/hero.png", rel)

	guid, ok := f.bank.GuidOf(filepath.Join(f.root, "TEXTURES", "Hero.PNG"))
	assert.True(t, ok)
	assert.Equal(t, e.Guid(), guid)
}

func TestAddFile_ReusesSidecarIdentity(t *testing.T) {
	f := newFixture(t)
	p := f.write(t, "Textures/hero.png", "x")
	g := asset.NewGuid()
	require.NoError(t, os.WriteFile(p+".meta", []byte("{\n  // kept\n  \"guid\": \""+g.String()+"\",\n  \"srgb\": true,\n}\n"), 0o644))

	e := f.bank.AddFile(p)
	require.NotNil(t, e)
	assert.Equal(t, g, e.Guid())

	instance := f.bank.Get(g).(*blob)
	assert.Equal(t, true, instance.meta["srgb"])
}

func TestAddFile_HealsCorruptSidecar(t *testing.T) {
	f := newFixture(t)
	p := f.write(t, "Docs/readme.txt", "x")

	t.Run("Garbage", func(t *testing.T) {
		require.NoError(t, os.WriteFile(p+".meta", []byte("not json"), 0o644))
		e := f.bank.AddFile(p)
		require.NotNil(t, e)

		sc, err := filebank.ReadSidecar(p)
		require.NoError(t, err)
		assert.Equal(t, e.Guid(), sc.Guid)
		f.bank.RemoveFile(p)
	})

	t.Run("InvalidGuidKeepsFields", func(t *testing.T) {
		require.NoError(t, os.WriteFile(p+".meta", []byte(`{"guid": "nope", "author": "sam"}`), 0o644))
		e := f.bank.AddFile(p)
		require.NotNil(t, e)

		sc, err := filebank.ReadSidecar(p)
		require.NoError(t, err)
		assert.Equal(t, e.Guid(), sc.Guid)
		assert.Equal(t, "sam", sc.Fields["author"])
	})
}

func TestAddFile_DuplicateSidecarGetsNewIdentity(t *testing.T) {
	f := newFixture(t)
	a := f.write(t, "a.png", "a")
	b := f.write(t, "copy/a.png", "a")

	first := f.bank.AddFile(a)
	require.NotNil(t, first)
	// Simulate copying the file together with its sidecar.
	data, err := os.ReadFile(a + ".meta")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(b+".meta", data, 0o644))

	second := f.bank.AddFile(b)
	require.NotNil(t, second)
	assert.NotEqual(t, first.Guid(), second.Guid())

	sc, err := filebank.ReadSidecar(b)
	require.NoError(t, err)
	assert.Equal(t, second.Guid(), sc.Guid)
}

func TestAddFile_IgnoresNonAssets(t *testing.T) {
	f := newFixture(t)
	f.write(t, "tool.exe", "x")
	f.write(t, "scripts/player.go", "package main")
	f.write(t, "hero.png.meta", `{"guid": "x"}`)

	assert.Nil(t, f.bank.AddFile("tool.exe"))
	assert.Nil(t, f.bank.AddFile("scripts/player.go"))
	assert.Nil(t, f.bank.AddFile("hero.png.meta"))
	assert.Nil(t, f.bank.AddFile("missing.png"))
	assert.Nil(t, f.bank.AddFile("../outside.png"))
	assert.Equal(t, 0, f.bank.Len())

	_, err := os.Stat(filepath.Join(f.root, "tool.exe.meta"))
	assert.True(t, os.IsNotExist(err))
}

func TestAddFile_NameConflictReplacesPathMapping(t *testing.T) {
	f := newFixture(t)
	f.write(t, "hero.png", "png")
	f.write(t, "hero.jpg", "jpg")

	first := f.bank.AddFile("hero.png")
	require.NotNil(t, first)
	require.NotNil(t, f.bank.Get(first.Guid()))

	second := f.bank.AddFile("hero.jpg")
	assert.Same(t, first, second)
	assert.False(t, first.IsLoaded())

	rel, _ := f.bank.PathOf(first.Guid())
	assert.Equal(t, "hero.jpg", rel)
	_, tracked := f.bank.GuidOf("hero.png")
	assert.False(t, tracked)

	assert.Equal(t, "jpg", f.bank.Get(first.Guid()).(*blob).data)
}

func TestSyncAllFiles(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Textures/hero.png", "hero")
	f.write(t, "Textures/tree.jpg", "tree")
	f.write(t, "Docs/readme.txt", "readme")
	f.write(t, "Docs/notes.rtf", "notes")
	f.write(t, "bin/tool.exe", "tool")

	stats := f.bank.SyncAllFiles()
	assert.True(t, stats.Full)
	assert.Equal(t, 3, f.bank.Len())
	assert.Equal(t, 3, stats.Added)

	t.Run("IdempotentOnIdentity", func(t *testing.T) {
		before := map[string]asset.Guid{}
		for _, tr := range f.bank.Tracked() {
			before[tr.Path] = tr.Guid
		}
		stats := f.bank.SyncAllFiles()
		assert.Equal(t, 0, stats.Added)
		assert.Equal(t, 3, stats.Updated)
		assert.Equal(t, 0, stats.Removed)
		after := map[string]asset.Guid{}
		for _, tr := range f.bank.Tracked() {
			after[tr.Path] = tr.Guid
		}
		assert.Equal(t, before, after)
	})

	t.Run("SurvivesRestart", func(t *testing.T) {
		reg := f.bank.Registry()
		fresh, err := filebank.New(f.root, reg)
		require.NoError(t, err)
		fresh.SyncAllFiles()
		assert.Equal(t, f.bank.Tracked(), fresh.Tracked())
	})

	t.Run("PrunesDeletedFiles", func(t *testing.T) {
		g, ok := f.bank.GuidOf("Docs/readme.txt")
		require.True(t, ok)
		require.NoError(t, os.Remove(filepath.Join(f.root, "Docs", "readme.txt")))

		stats := f.bank.SyncAllFiles()
		assert.Equal(t, 1, stats.Removed)
		assert.False(t, f.bank.Has(g))
		_, ok = f.bank.PathOf(g)
		assert.False(t, ok)
	})

	t.Run("DiscardsPendingMarks", func(t *testing.T) {
		f.bank.MarkFile("Textures/hero.png", filebank.Changed)
		require.True(t, f.bank.IsWaitingForSync())
		f.bank.SyncAllFiles()
		assert.False(t, f.bank.IsWaitingForSync())
	})
}

func TestSyncMarkedFiles_Scenarios(t *testing.T) {
	f := newFixture(t)
	p := f.write(t, "Textures/hero.png", "v1")
	f.bank.SyncAllFiles()

	g, ok := f.bank.GuidOf(p)
	require.True(t, ok)
	sidecar, err := os.ReadFile(p + ".meta")
	require.NoError(t, err)

	t.Run("ChangedEvictsCache", func(t *testing.T) {
		require.Equal(t, "v1", f.bank.Get(g).(*blob).data)
		require.NoError(t, os.WriteFile(p, []byte("v2"), 0o644))
		f.bank.MarkFile(p, filebank.Changed)

		stats := f.bank.SyncMarkedFiles()
		assert.Equal(t, 1, stats.Updated)
		assert.False(t, f.bank.IsLoaded(g))
		assert.Equal(t, "v2", f.bank.Get(g).(*blob).data)

		after, err := os.ReadFile(p + ".meta")
		require.NoError(t, err)
		assert.Equal(t, sidecar, after)
		same, _ := f.bank.GuidOf(p)
		assert.Equal(t, g, same)
	})

	t.Run("RenameMintsNewIdentity", func(t *testing.T) {
		renamed := filepath.Join(f.root, "Textures", "hero2.png")
		require.NoError(t, os.Rename(p, renamed))
		f.bank.OnRenamed(p, renamed)
		f.bank.SyncMarkedFiles()

		assert.False(t, f.bank.Has(g))
		g2, ok := f.bank.GuidOf(renamed)
		require.True(t, ok)
		assert.NotEqual(t, g, g2)
		assert.NotNil(t, f.bank.GetByName(asset.KindTexture, "Textures/hero2"))

		g = g2
		p = renamed
	})

	t.Run("DeletedRemovesEntry", func(t *testing.T) {
		require.NoError(t, os.Remove(p))
		f.bank.MarkFile(p, filebank.Deleted)
		stats := f.bank.SyncMarkedFiles()

		assert.Equal(t, 1, stats.Removed)
		assert.False(t, f.bank.Has(g))
		_, ok := f.bank.PathOf(g)
		assert.False(t, ok)
		_, ok = f.bank.GuidOf(p)
		assert.False(t, ok)
	})
}

func TestSyncMarkedFiles_UntrackedGuard(t *testing.T) {
	f := newFixture(t)
	f.write(t, "ghost.png", "x")

	assert.True(t, f.bank.MarkFile("ghost.png", filebank.Changed))
	assert.True(t, f.bank.MarkFile("ghost.png", filebank.Deleted))
	stats := f.bank.SyncMarkedFiles()
	assert.Equal(t, 2, stats.Dropped)
	assert.Equal(t, 0, f.bank.Len())

	assert.True(t, f.bank.MarkFile("ghost.png", filebank.Created))
	stats = f.bank.SyncMarkedFiles()
	assert.Equal(t, 1, stats.Added)
	assert.Equal(t, 1, f.bank.Len())
}

func TestMarkFile_FiltersAtBoundary(t *testing.T) {
	f := newFixture(t, filebank.WithSourceExtensions(".go", "cs"))

	assert.False(t, f.bank.MarkFile("hero.png.meta", filebank.Created))
	assert.False(t, f.bank.MarkFile("Scripts/player.go", filebank.Changed))
	assert.False(t, f.bank.MarkFile("Scripts/Player.CS", filebank.Changed))
	assert.False(t, f.bank.MarkFile(filepath.Join(filepath.Dir(f.root), "elsewhere.png"), filebank.Created))
	assert.True(t, f.bank.MarkFile("hero.png", filebank.Created))
	assert.Equal(t, 1, f.bank.PendingMarks())
}

func TestSyncMarkedFiles_ProcessesSnapshotOnly(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		f.write(t, name, name)
	}

	f.bank.MarkFile("a.txt", filebank.Created)
	f.bank.MarkFile("b.txt", filebank.Created)

	// A processor that queues another mark while the batch is being applied.
	f.bank.RegisterProcessor(asset.KindText, filebank.ProcessorFunc(func(b *filebank.Bank, _ asset.Guid, name, _ string) {
		if name == "a" {
			b.MarkFile("c.txt", filebank.Created)
		}
	}))

	stats := f.bank.SyncMarkedFiles()
	assert.Equal(t, 2, stats.Added)
	assert.Equal(t, 1, f.bank.PendingMarks())
	assert.False(t, f.bank.HasName(asset.KindText, "c"))

	f.bank.SyncMarkedFiles()
	assert.True(t, f.bank.HasName(asset.KindText, "c"))
}

func TestSyncMarkedFiles_Overflow(t *testing.T) {
	f := newFixture(t, filebank.WithQueueSize(1))
	f.write(t, "a.txt", "a")
	f.write(t, "b.txt", "b")

	assert.True(t, f.bank.MarkFile("a.txt", filebank.Created))
	assert.False(t, f.bank.MarkFile("b.txt", filebank.Created))
	assert.True(t, f.bank.IsWaitingForSync())

	stats := f.bank.SyncMarkedFiles()
	assert.True(t, stats.Full)
	assert.Equal(t, 2, f.bank.Len())
	assert.False(t, f.bank.IsWaitingForSync())
}

func TestSyncMarkedFiles_DeletedDirectory(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Level1/a.png", "a")
	f.write(t, "Level1/sub/b.png", "b")
	f.write(t, "Level2/c.png", "c")
	f.bank.SyncAllFiles()

	require.NoError(t, os.RemoveAll(filepath.Join(f.root, "Level1")))
	f.bank.MarkFile("Level1", filebank.Deleted)
	stats := f.bank.SyncMarkedFiles()

	assert.Equal(t, 2, stats.Removed)
	assert.Equal(t, 1, f.bank.Len())
}

func TestMarkFile_ConcurrentProducers(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.txt", "a")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				f.bank.MarkFile("a.txt", filebank.Created)
			}
		}()
	}
	for i := 0; i < 10; i++ {
		f.bank.SyncMarkedFiles()
	}
	wg.Wait()
	f.bank.SyncMarkedFiles()

	assert.Equal(t, 1, f.bank.Len())
	assert.False(t, f.bank.IsWaitingForSync())
}

func TestProcessor_FiresOnDiscoveryAndUpdate(t *testing.T) {
	f := newFixture(t)
	p := f.write(t, "hero.png", "x")

	var calls []string
	f.bank.RegisterProcessor(asset.KindTexture, filebank.ProcessorFunc(func(_ *filebank.Bank, _ asset.Guid, name, path string) {
		calls = append(calls, name+"@"+filepath.Base(path))
	}))

	f.bank.AddFile(p)
	assert.Equal(t, []string{"hero@hero.png"}, calls)

	// Re-adding a known file is not a discovery.
	f.bank.RemoveFile(p)
	f.bank.AddFile(p)
	assert.Len(t, calls, 1)

	f.bank.UpdateFile(p)
	assert.Len(t, calls, 2)

	f.bank.RegisterProcessor(asset.KindTexture, nil)
	f.bank.UpdateFile(p)
	assert.Len(t, calls, 2)
}

func TestGetAssetStream_StaleMapping(t *testing.T) {
	f := newFixture(t)
	p := f.write(t, "hero.png", "x")
	e := f.bank.AddFile(p)
	require.NotNil(t, e)

	require.NoError(t, os.Remove(p))
	_, err := f.bank.GetAssetStream(e.Guid())
	assert.ErrorIs(t, err, asset.ErrNotFound)

	// The entry stays registered until a sync observes the deletion.
	assert.True(t, f.bank.Has(e.Guid()))
	assert.Nil(t, f.bank.Get(e.Guid()))

	_, err = f.bank.GetAssetStream(asset.NewGuid())
	assert.ErrorIs(t, err, asset.ErrNotFound)
}

func TestRemoveAndClear_KeepBijection(t *testing.T) {
	f := newFixture(t)
	a := f.write(t, "a.png", "a")
	f.write(t, "b.png", "b")
	f.bank.SyncAllFiles()

	g, _ := f.bank.GuidOf(a)
	f.bank.Remove(g)
	_, ok := f.bank.GuidOf(a)
	assert.False(t, ok)
	_, ok = f.bank.PathOf(g)
	assert.False(t, ok)

	f.bank.Clear()
	assert.Empty(t, f.bank.Tracked())
	assert.Equal(t, 0, f.bank.Len())
}

func TestRewriteSidecar(t *testing.T) {
	f := newFixture(t)
	p := f.write(t, "hero.png", "x")
	e := f.bank.AddFile(p)
	require.NotNil(t, e)

	require.NoError(t, os.WriteFile(p+".meta", []byte(`{"guid": "`+asset.NewGuid().String()+`", "filter": "point"}`), 0o644))
	require.NoError(t, f.bank.RewriteSidecar(p))

	sc, err := filebank.ReadSidecar(p)
	require.NoError(t, err)
	assert.Equal(t, e.Guid(), sc.Guid)
	assert.Equal(t, "point", sc.Fields["filter"])

	assert.ErrorIs(t, f.bank.RewriteSidecar("nope.png"), asset.ErrNotFound)
}

func TestWatching_ProducesMarks(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.bank.StartWatching())
	require.NoError(t, f.bank.StartWatching())
	assert.True(t, f.bank.IsWatching())

	f.write(t, "live.png", "x")
	assert.Eventually(t, f.bank.IsWaitingForSync, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		f.bank.SyncMarkedFiles()
		return f.bank.HasName(asset.KindTexture, "live")
	}, 2*time.Second, 10*time.Millisecond)

	f.bank.StopWatching()
	assert.False(t, f.bank.IsWatching())
	f.bank.SyncMarkedFiles()

	f.write(t, "unseen.png", "x")
	time.Sleep(100 * time.Millisecond)
	assert.False(t, f.bank.IsWaitingForSync())
}

func TestSyncAllFiles_CountsOnlyNewEntriesAsAdded(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.txt", "a")
	f.write(t, "b.txt", "b")
	require.Equal(t, 2, f.bank.SyncAllFiles().Added)

	f.write(t, "c.txt", "c")
	stats := f.bank.SyncAllFiles()
	assert.Equal(t, 1, stats.Added)
	assert.Equal(t, 2, stats.Updated)
	assert.Equal(t, 3, f.bank.Len())

	// A Created mark for a tracked file refreshes it.
	f.bank.MarkFile("a.txt", filebank.Created)
	stats = f.bank.SyncMarkedFiles()
	assert.Equal(t, 0, stats.Added)
	assert.Equal(t, 1, stats.Updated)
}

func TestRemoveFile_FallsBackToReplacedFile(t *testing.T) {
	f := newFixture(t)
	f.write(t, "hero.png", "png")
	jpg := f.write(t, "hero.jpg", "jpg")

	e := f.bank.AddFile("hero.png")
	require.NotNil(t, e)
	require.Same(t, e, f.bank.AddFile("hero.jpg"))
	require.Equal(t, "jpg", f.bank.Get(e.Guid()).(*blob).data)

	require.NoError(t, os.Remove(jpg))
	f.bank.MarkFile(jpg, filebank.Deleted)
	stats := f.bank.SyncMarkedFiles()

	assert.Equal(t, 0, stats.Removed)
	assert.Equal(t, 1, stats.Updated)
	assert.True(t, f.bank.Has(e.Guid()))
	rel, ok := f.bank.PathOf(e.Guid())
	require.True(t, ok)
	assert.Equal(t, "hero.png", rel)
	guid, ok := f.bank.GuidOf("hero.png")
	assert.True(t, ok)
	assert.Equal(t, e.Guid(), guid)
	assert.Equal(t, "png", f.bank.Get(e.Guid()).(*blob).data)

	t.Run("NoSurvivorRemoves", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(f.root, "hero.png")))
		f.bank.MarkFile("hero.png", filebank.Deleted)
		stats := f.bank.SyncMarkedFiles()

		assert.Equal(t, 1, stats.Removed)
		assert.False(t, f.bank.Has(e.Guid()))
	})
}

func TestRemoveFile_ForgetsReplacedFileThatIsGone(t *testing.T) {
	f := newFixture(t)
	png := f.write(t, "hero.png", "png")
	f.write(t, "hero.jpg", "jpg")

	e := f.bank.AddFile("hero.png")
	require.NotNil(t, e)
	f.bank.AddFile("hero.jpg")
	require.NoError(t, os.Remove(png))

	assert.True(t, f.bank.RemoveFile("hero.jpg"))
	assert.False(t, f.bank.Has(e.Guid()))
}
