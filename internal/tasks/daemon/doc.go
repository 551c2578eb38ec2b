// Package daemon keeps the local task store fresh by refreshing it from the
// remote store on a timer.
//
// # Architecture
//
// The daemon consists of two components:
//
//   - Daemon: runs FetchTasksFromServer once at start and then every Interval
//   - ConfigWatcher: fsnotify watch on the configuration file
//
// A failed refresh is logged and counted in Status; the next tick tries
// again. There is no backoff.
//
// # Config reload
//
// When Config.ConfigPath is set the daemon watches that file. After a change
// settles for DebounceInterval it calls Config.Reload and applies the
// returned interval to the running ticker:
//
//	d, err := daemon.NewWithConfig(syncer, &daemon.Config{
//	    Interval:   30 * time.Second,
//	    ConfigPath: config.ConfigFileUsed(),
//	    Reload: func() (time.Duration, error) {
//	        if err := config.Reload(); err != nil {
//	            return 0, err
//	        }
//	        return config.GetDuration("sync.interval"), nil
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	return d.Start(ctx) // blocks until ctx is cancelled
//
// Removing the config file keeps the current settings.
package daemon
