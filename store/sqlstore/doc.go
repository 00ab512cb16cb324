// Package sqlstore persists accounts, federated identities and emailed
// tokens with gorm, on sqlite or postgres.
//
// Schema changes are goose migrations embedded in the binary, one set per
// dialect. Call [Store.Migrate] before first use; the store never calls
// AutoMigrate.
//
// Failure counting is a single UPDATE ... SET failed_login_count =
// failed_login_count + 1, so concurrent wrong passwords are all counted.
package sqlstore
