package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// fileStamp identifies a version of a file on disk.
type fileStamp struct {
	modTime time.Time
	size    int64
}

func stat(path string) (fileStamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}, err
	}
	return fileStamp{modTime: info.ModTime(), size: info.Size()}, nil
}

// WatchDirectory loads the directory file once, hands it to onUpdate and then
// polls the file every interval in the background. A changed file that fails
// validation is logged and skipped; the last good directory stays in effect.
func WatchDirectory(ctx context.Context, path string, interval time.Duration, logger *zerolog.Logger, onUpdate func(*Directory)) error {
	if path == "" {
		path = "configs/directory.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	log := logger.With().Str("component", "directory_watch").Str("path", path).Logger()

	seen, err := stat(path)
	if err != nil {
		return err
	}
	dir, err := LoadDirectory(path)
	if err != nil {
		return err
	}
	onUpdate(dir)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			current, err := stat(path)
			if err != nil {
				log.Warn().Err(err).Msg("stat directory file")
				continue
			}
			if current == seen {
				continue
			}
			seen = current

			dir, err := LoadDirectory(path)
			if err != nil {
				log.Error().Err(err).Msg("directory reload rejected")
				continue
			}
			log.Info().Msg("directory file changed")
			onUpdate(dir)
		}
	}()

	return nil
}
