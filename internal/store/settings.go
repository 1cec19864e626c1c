package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dvloznov/ledgerbook/internal/kv"
)

// Device-wide settings keys. These are not namespaced by identity and never
// sync: they belong to the device, not the user's ledger.
const (
	SettingPasscode   = "app_passcode"
	SettingAuthMethod = "auth_method"
	SettingTheme      = "app_theme"
	SettingLanguage   = "app_language"
	SettingCurrency   = "app_currency"
	settingDeviceID   = "device_id"
)

var settingDefaults = map[string]string{
	SettingAuthMethod: "none",
	SettingTheme:      "dark",
	SettingLanguage:   "en",
	SettingCurrency:   "USD",
}

// Setting returns the value of a device-wide setting, or its default when
// unset. Read errors are logged and yield the default.
func (s *Store) Setting(ctx context.Context, key string) string {
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.log.Error().Err(err).Str("key", key).Msg("Failed to read setting")
		}
		return settingDefaults[key]
	}
	return string(data)
}

// SetSetting writes a device-wide setting. Settings writes do not trigger
// sync; only the record collections are pushed.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if err := s.kv.Set(ctx, key, []byte(value)); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Failed to write setting")
		return err
	}
	return nil
}

// DeleteSetting removes a device-wide setting (e.g. clearing the passcode).
func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	return s.kv.Delete(ctx, key)
}

// DeviceID returns the stable identifier for this device, generating and
// persisting one on first use.
func (s *Store) DeviceID(ctx context.Context) string {
	if id := s.Setting(ctx, settingDeviceID); id != "" {
		return id
	}
	id := uuid.New().String()
	if err := s.SetSetting(ctx, settingDeviceID, id); err != nil {
		// Not persisted; callers still get a usable one-session id.
		return id
	}
	return id
}
