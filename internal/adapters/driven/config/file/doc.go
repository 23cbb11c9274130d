// Package file keeps shopbot's user-editable state under ~/.shopbot:
// settings in config.toml (ConfigStore) and prompt templates in prompts/
// (PromptStore), the latter seeded from the embedded defaults directory.
package file
