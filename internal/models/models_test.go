package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voiceloom/meetscribe/internal/errs"
	"github.com/voiceloom/meetscribe/internal/wire"
)

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func TestResolveFetchesAndVerifiesOnFirstCall(t *testing.T) {
	payload := []byte("fake-onnx-model-bytes-0123456789")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	reg := Registry{
		registryKey(RoleASR, Turbo): {URL: srv.URL, ExpectedSize: int64(len(payload)), ExpectedSHA256: sha256Hex(payload)},
	}
	mgr, err := NewManager(dir, reg)
	require.NoError(t, err)

	var progressed bool
	path, err := mgr.Resolve(context.Background(), RoleASR, Turbo, func(downloaded, total int64) { progressed = true })
	require.NoError(t, err)
	require.FileExists(t, path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.True(t, progressed)

	entry, ok := mgr.Status(RoleASR, Turbo)
	require.True(t, ok)
	require.Equal(t, wire.StatusValid, entry.Status)
}

func TestResolveReturnsCachedPathWithoutRefetching(t *testing.T) {
	calls := 0
	payload := []byte("model-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	reg := Registry{registryKey(RoleVAD, Standard): {URL: srv.URL, ExpectedSize: int64(len(payload))}}
	mgr, err := NewManager(dir, reg)
	require.NoError(t, err)

	_, err = mgr.Resolve(context.Background(), RoleVAD, Standard, nil)
	require.NoError(t, err)
	_, err = mgr.Resolve(context.Background(), RoleVAD, Standard, nil)
	require.NoError(t, err)

	require.Equal(t, 1, calls, "second Resolve should use the cached, Valid artifact")
}

func TestResolveRejectsChecksumMismatch(t *testing.T) {
	payload := []byte("corrupted-on-the-wire")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	reg := Registry{
		registryKey(RoleEmbedder, Standard): {URL: srv.URL, ExpectedSize: int64(len(payload)), ExpectedSHA256: "0000000000000000000000000000000000000000000000000000000000000"},
	}
	mgr, err := NewManager(dir, reg)
	require.NoError(t, err)

	_, err = mgr.Resolve(context.Background(), RoleEmbedder, Standard, nil)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.ModelCorrupted))

	_, err = os.Stat(filepath.Join(dir, "embedder_Standard.bin"))
	require.True(t, os.IsNotExist(err), "a failed verification must not leave a file at the final path")
}

func TestResolveRejectsSizeOutsideTolerance(t *testing.T) {
	payload := []byte("short")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	reg := Registry{registryKey(RoleASR, Standard): {URL: srv.URL, ExpectedSize: 10_000_000}}
	mgr, err := NewManager(dir, reg)
	require.NoError(t, err)

	_, err = mgr.Resolve(context.Background(), RoleASR, Standard, nil)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.ModelCorrupted))
}

func TestResolveAcceptsUnknownChecksumAsNotValidated(t *testing.T) {
	payload := []byte("model-with-no-known-hash")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	reg := Registry{registryKey(RoleEmbedder, HighAccuracy): {URL: srv.URL, ExpectedSize: int64(len(payload))}}
	mgr, err := NewManager(dir, reg)
	require.NoError(t, err)

	_, err = mgr.Resolve(context.Background(), RoleEmbedder, HighAccuracy, nil)
	require.NoError(t, err)

	entry, ok := mgr.Status(RoleEmbedder, HighAccuracy)
	require.True(t, ok)
	require.Equal(t, wire.StatusNotValidated, entry.Status)
}

func TestResolveRefetchesAfterCorruptedStatus(t *testing.T) {
	calls := 0
	payload := []byte("model-bytes-v2")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	reg := Registry{registryKey(RoleVAD, Turbo): {URL: srv.URL, ExpectedSize: int64(len(payload))}}
	mgr, err := NewManager(dir, reg)
	require.NoError(t, err)

	key := registryKey(RoleVAD, Turbo)
	mgr.meta.Entries[key] = wire.ModelCacheEntry{Status: wire.StatusCorrupted}

	_, err = mgr.Resolve(context.Background(), RoleVAD, Turbo, nil)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	entry, _ := mgr.Status(RoleVAD, Turbo)
	require.Equal(t, wire.StatusNotValidated, entry.Status)
}

func TestResolveUnknownRoleTierReturnsModelNotFound(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(dir, Registry{})
	require.NoError(t, err)

	_, err = mgr.Resolve(context.Background(), RoleASR, Turbo, nil)
	require.True(t, errs.Is(err, errs.ModelNotFound))
}

func TestEvictForcesRefetch(t *testing.T) {
	calls := 0
	payload := []byte("evict-me")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	reg := Registry{registryKey(RoleASR, HighAccuracy): {URL: srv.URL, ExpectedSize: int64(len(payload))}}
	mgr, err := NewManager(dir, reg)
	require.NoError(t, err)

	_, err = mgr.Resolve(context.Background(), RoleASR, HighAccuracy, nil)
	require.NoError(t, err)
	require.NoError(t, mgr.Evict(RoleASR, HighAccuracy))

	_, ok := mgr.Status(RoleASR, HighAccuracy)
	require.False(t, ok)

	_, err = mgr.Resolve(context.Background(), RoleASR, HighAccuracy, nil)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}
