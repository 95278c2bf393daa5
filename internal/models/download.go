package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/voiceloom/meetscribe/internal/errs"
	"github.com/voiceloom/meetscribe/internal/wire"
)

// sizeTolerance is how far a downloaded artifact's size may drift from the
// registry's expected size before it is rejected, per §4.K.
const sizeTolerance = 0.05

// progressReader wraps an io.Reader, throttling progress callbacks the same
// way the teacher's downloader.go does (one report per reportPeriod, plus a
// final one on EOF).
type progressReader struct {
	reader       io.Reader
	totalSize    int64
	downloaded   int64
	onProgress   ProgressCallback
	lastReport   time.Time
	reportPeriod time.Duration
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.downloaded += int64(n)
		if pr.reportPeriod == 0 {
			pr.reportPeriod = 500 * time.Millisecond
		}
		now := time.Now()
		if pr.onProgress != nil && (now.Sub(pr.lastReport) >= pr.reportPeriod || err == io.EOF) {
			pr.lastReport = now
			pr.onProgress(pr.downloaded, pr.totalSize)
		}
	}
	return n, err
}

// fetchResult is what downloadToTemp learned about the bytes it streamed.
type fetchResult struct {
	tmpPath string
	size    int64
	sha256  string
}

// downloadToTemp streams url's body into destPath+".tmp", computing its
// SHA-256 as it writes. The caller is responsible for verifying the result
// and renaming (or removing) the temp file — nothing is made visible at
// destPath by this function, matching §4.K's "atomically rename only on
// success" rule.
func downloadToTemp(ctx context.Context, client *http.Client, url, destPath string, expectedSize int64, onProgress ProgressCallback) (fetchResult, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fetchResult{}, errs.Wrap(errs.ModelLoadFailed, err, "models: create cache directory for %s", destPath)
	}

	tmpPath := destPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fetchResult{}, errs.Wrap(errs.ModelLoadFailed, err, "models: create temp file %s", tmpPath)
	}
	defer out.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		os.Remove(tmpPath)
		return fetchResult{}, errs.Wrap(errs.ModelLoadFailed, err, "models: build request for %s", url)
	}

	resp, err := client.Do(req)
	if err != nil {
		os.Remove(tmpPath)
		return fetchResult{}, errs.Wrap(errs.ModelLoadFailed, err, "models: fetch %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		os.Remove(tmpPath)
		return fetchResult{}, errs.New(errs.ModelLoadFailed, "models: fetch %s: bad status %s", url, resp.Status)
	}

	totalSize := resp.ContentLength
	if totalSize <= 0 && expectedSize > 0 {
		totalSize = expectedSize
	}

	hasher := sha256.New()
	reader := &progressReader{reader: io.TeeReader(resp.Body, hasher), totalSize: totalSize, onProgress: onProgress}

	written, err := io.Copy(out, reader)
	if err != nil {
		os.Remove(tmpPath)
		return fetchResult{}, errs.Wrap(errs.ModelLoadFailed, err, "models: write %s", tmpPath)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return fetchResult{}, errs.Wrap(errs.ModelLoadFailed, err, "models: close %s", tmpPath)
	}

	return fetchResult{tmpPath: tmpPath, size: written, sha256: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// verify checks a freshly downloaded artifact against its registry entry,
// returning the cache status to record on success. Size is checked within
// sizeTolerance regardless of how it was known (registry sizes are always
// estimates in practice — CDNs compress and repack artifacts over time);
// SHA-256 is checked exactly when the registry states one, otherwise the
// entry is accepted as NotValidated per §4.K.
func verify(entry RegistryEntry, got fetchResult) (wire.ModelCacheStatus, error) {
	if entry.ExpectedSize > 0 {
		lower := float64(entry.ExpectedSize) * (1 - sizeTolerance)
		upper := float64(entry.ExpectedSize) * (1 + sizeTolerance)
		if float64(got.size) < lower || float64(got.size) > upper {
			return "", errs.New(errs.ModelCorrupted, "models: downloaded size %d outside tolerance of expected %d", got.size, entry.ExpectedSize)
		}
	}

	if entry.ExpectedSHA256 == "" {
		return wire.StatusNotValidated, nil
	}
	if got.sha256 != entry.ExpectedSHA256 {
		return "", errs.New(errs.ModelCorrupted, "models: checksum mismatch: got %s want %s", got.sha256, entry.ExpectedSHA256)
	}
	return wire.StatusValid, nil
}

func formatSize(n int64) string {
	return fmt.Sprintf("%.1fMiB", float64(n)/(1024*1024))
}
