package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/TheCacophonyProject/battery-estimator/estimator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoltStore(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(KindBolt, dir)
	require.NoError(t, err)

	_, found, err := s.Load()
	require.NoError(t, err)
	assert.False(t, found)

	want := estimator.PersistentEstimate{LastVoltage: 3761, LastLevel: 50}
	require.NoError(t, s.Save(want))
	require.NoError(t, s.Close())

	s, err = Open(KindBolt, dir)
	require.NoError(t, err)
	defer s.Close()
	got, found, err := s.Load()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(KindFile, dir)
	require.NoError(t, err)

	_, found, err := s.Load()
	require.NoError(t, err)
	assert.False(t, found)

	want := estimator.PersistentEstimate{LastVoltage: 4182, LastLevel: 99}
	require.NoError(t, s.Save(want))

	got, found, err := NewFileStore(filepath.Join(dir, jsonFileName)).Load()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)

	require.NoError(t, os.WriteFile(filepath.Join(dir, jsonFileName), []byte("{"), 0644))
	_, _, err = s.Load()
	assert.Error(t, err)
}

func TestOpenUnknownKind(t *testing.T) {
	_, err := Open("sqlite", t.TempDir())
	assert.Error(t, err)
}

type gatedStore struct {
	mu      sync.Mutex
	saved   []estimator.PersistentEstimate
	started chan struct{}
	release chan struct{}
	closed  bool
}

func (s *gatedStore) Load() (estimator.PersistentEstimate, bool, error) {
	return estimator.PersistentEstimate{}, false, nil
}

func (s *gatedStore) Save(p estimator.PersistentEstimate) error {
	s.started <- struct{}{}
	<-s.release
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, p)
	return nil
}

func (s *gatedStore) Close() error {
	s.closed = true
	return nil
}

func TestAsyncWriterKeepsNewest(t *testing.T) {
	s := &gatedStore{started: make(chan struct{}, 4), release: make(chan struct{})}
	w := NewAsyncWriter(s)

	first := estimator.PersistentEstimate{LastVoltage: 3900, LastLevel: 60}
	require.NoError(t, w.Save(first))
	<-s.started

	require.NoError(t, w.Save(estimator.PersistentEstimate{LastVoltage: 3890, LastLevel: 59}))
	last := estimator.PersistentEstimate{LastVoltage: 3880, LastLevel: 58}
	require.NoError(t, w.Save(last))

	close(s.release)
	require.NoError(t, w.Close())

	assert.Equal(t, []estimator.PersistentEstimate{first, last}, s.saved)
	assert.True(t, s.closed)
	assert.True(t, errors.Is(w.Save(last), ErrClosed))
}

func TestLockDir(t *testing.T) {
	dir := t.TempDir()
	l, err := LockDir(dir)
	require.NoError(t, err)

	_, err = LockDir(dir)
	assert.Equal(t, ErrLocked, err)

	require.NoError(t, l.Unlock())
	l, err = LockDir(dir)
	require.NoError(t, err)
	require.NoError(t, l.Unlock())
}
