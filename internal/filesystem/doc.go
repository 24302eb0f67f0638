/*
Package filesystem wraps os.Stat and os.Open with retry logic for NFS stale
file handle errors (ESTALE).

Media libraries and thumbnail caches are frequently NFS mounts. A stale
handle on the cache-hit check would otherwise be reported as a miss and
cause a needless ffmpeg run, so the thumbnail cache checks for existing
files through [NonEmptyFile].

Only ESTALE is retried; every other error is returned on the first attempt.
Backoff is exponential from InitialBackoff up to MaxBackoff.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

Retry metrics are labelled by volume. Configure the labels once at startup:

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"media": cfg.MediaDir,
		"cache": cfg.CacheDir,
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())
*/
package filesystem
