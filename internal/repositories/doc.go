// Package repositories implements SQLite persistence for cached audio features and run history.
//
// Key Implementations:
//   - [FeatureRepository] : Audio feature cache keyed by track id, implements tasks.FeatureCacher
//   - [RunRepository] : History of organize runs with status tracking
//
// Both expect a database migrated with shared.RunMigrations.
package repositories
