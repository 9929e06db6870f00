package sqlite

// Schema DDL. Statements are idempotent so an existing database is reused.
const (
	createDocuments = `CREATE TABLE IF NOT EXISTS documents (
    path TEXT PRIMARY KEY,
    revision TEXT NOT NULL,
    content BLOB NOT NULL,
    updated_at TEXT NOT NULL
);`

	createRevisions = `CREATE TABLE IF NOT EXISTS revisions (
    revision TEXT PRIMARY KEY,
    path TEXT NOT NULL,
    parent TEXT,
    message TEXT NOT NULL,
    content BLOB NOT NULL,
    created_at TEXT NOT NULL
);`

	createRevisionsPathIndex = `CREATE INDEX IF NOT EXISTS idx_revisions_path ON revisions (path);`
)

// schemaStatements lists the DDL in execution order.
var schemaStatements = []string{
	createDocuments,
	createRevisions,
	createRevisionsPathIndex,
}
