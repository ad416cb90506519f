package observability

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hyp3rd/grpc-observability/pkg/config"
)

// ConfigFilePath returns the path read by the first file loader in the
// controller's chain, or "" when it has none.
func (c *Controller) ConfigFilePath() string {
	for _, loader := range c.opts.loaders {
		switch fl := loader.(type) {
		case config.FileLoader:
			return fl.ResolvedPath()
		case *config.FileLoader:
			if fl != nil {
				return fl.ResolvedPath()
			}
		}
	}

	return ""
}

// WatchConfigFile calls Reactivate on c whenever the configuration file
// changes. An empty path watches ConfigFilePath. The returned stop function
// ends the watch, as does canceling ctx. Failed reloads are logged and keep
// the previous instance.
func WatchConfigFile(ctx context.Context, c *Controller, path string) (func(), error) {
	if path == "" {
		path = c.ConfigFilePath()
	}

	if path == "" {
		return nil, ewrap.New("no configuration file to watch")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, ewrap.Wrap(err, "resolve config path")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ewrap.Wrap(err, "create config watcher")
	}

	err = watcher.Add(filepath.Dir(abs))
	if err != nil {
		closeErr := watcher.Close()
		if closeErr != nil {
			c.log.Error(ctx, closeErr, "close config watcher after add failure")
		}

		return nil, ewrap.Wrap(err, "watch config directory")
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		c.watchLoop(ctx, watcher, abs)
	}()

	stop := func() {
		cancel()
		<-done
	}

	return stop, nil
}

// watchLoop reloads on writes, creates and renames of target.
func (c *Controller) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, target string) {
	defer func() {
		closeErr := watcher.Close()
		if closeErr != nil {
			c.log.Error(ctx, closeErr, "close config watcher")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if event.Name != target || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			c.log.Info(ctx, "configuration change detected", attribute.String("path", target))

			_, err := c.Reactivate(ctx)
			if err != nil {
				c.log.Error(ctx, err, "observability reactivation failed",
					attribute.String("path", target))

				continue
			}

			c.log.Info(ctx, "observability reactivated", attribute.String("path", target))
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}

			c.log.Error(ctx, err, "config watcher error")
		}
	}
}
