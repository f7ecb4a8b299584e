// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package config

import "net/url"

// redactDSN hides the password of a URL-style DSN. Strings that do not parse
// as a URL with user info are returned unchanged.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); !ok {
		return dsn
	}
	u.User = url.UserPassword(u.User.Username(), redacted)
	return u.String()
}
