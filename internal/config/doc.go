// Package config loads and watches the autorecord configuration file
// (autorecord.yaml).
//
// Top-level types:
//   - Config: base_dir, log_level, headless, refresh intervals, startup
//     stagger, users / users_file, and the checker, resolver, recorder and
//     display sections
//   - EndpointConfig: URL template with a {username} placeholder, poll
//     interval, timeout and auth for the checker and resolver workers
//   - AuthConfig: mode (none|bearer|apikey|basic), header, key_env,
//     token_env, username, password_env; Key(), Token() and Password()
//     resolve secrets from environment variables
//   - RecorderConfig, DisplayConfig
//
// Load(path) reads the YAML file, applies defaults (30s lock refresh, 5s
// status refresh, 15s startup stagger, 50px avatars), honours the
// AUTORECORD_BASE_DIR override, then validates intervals and enums.
// A missing file is not an error when allowMissing is set, so the binary
// runs with defaults out of the box.
//
// Paths derived from base_dir (LockDir, JSONDir, LiveUsersPath,
// StreamLinksPath, VideosDir, LogsDir) are methods on Config so every
// component agrees on the on-disk layout.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It handles the rename->create
// pattern used by atomic-save editors by re-adding the watch after each event.
package config
