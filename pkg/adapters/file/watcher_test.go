package file_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/weave/internal/testutils"
	"github.com/aretw0/weave/pkg/adapters/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReportsChangedFile(t *testing.T) {
	dir := testutils.SetupProject(t, map[string]string{
		"child.yaml": childYAML,
		"other.txt":  "ignored",
	})
	child := filepath.Join(dir, "child.yaml")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := file.NewWatcher([]string{child}, file.WithDebounce(150*time.Millisecond))
	changes, err := w.Watch(ctx)
	require.NoError(t, err)

	testutils.WriteFile(t, dir, "other.txt", "still ignored")
	testutils.WriteFile(t, dir, "child.yaml", childYAML+"\n# edited\n")
	testutils.WriteFile(t, dir, "child.yaml", childYAML+"\n# edited twice\n")

	select {
	case path := <-changes:
		assert.Equal(t, child, path)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change")
	}

	select {
	case path := <-changes:
		t.Fatalf("burst reported twice: %s", path)
	case <-time.After(400 * time.Millisecond):
	}

	cancel()
	select {
	case _, ok := <-changes:
		assert.False(t, ok, "channel closes with the context")
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not close")
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := file.NewWatcher([]string{filepath.Join(t.TempDir(), "nope", "main.yaml")})
	_, err := w.Watch(context.Background())
	assert.Error(t, err)
}
