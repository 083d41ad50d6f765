package repository

// Schema definitions for the amlboard database.
// Compatible with both SQLite and PostgreSQL.

// schemaClassificationRules holds API-managed classifier rules.
// Keywords are stored as a JSON array.
const schemaClassificationRules = `
CREATE TABLE IF NOT EXISTS classification_rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    typology TEXT NOT NULL,
    keywords TEXT NOT NULL,
    expression TEXT NOT NULL DEFAULT '',
    priority INTEGER NOT NULL DEFAULT 0,
    enabled INTEGER NOT NULL DEFAULT 1,
    deleted INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_classification_rules_order ON classification_rules(deleted, priority, id);
`

// schemaDatasetLoads is the audit trail of case file loads.
const schemaDatasetLoads = `
CREATE TABLE IF NOT EXISTS dataset_loads (
    id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    row_count INTEGER NOT NULL,
    sar_count INTEGER NOT NULL,
    typology_counts TEXT NOT NULL,
    loaded_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dataset_loads_loaded_at ON dataset_loads(loaded_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaClassificationRules,
		schemaDatasetLoads,
	}
}
