package journal

import "embed"

// sqlSchemas is the embedded migration source, following the teacher's
// db.sqlSchemas convention of embedding SQL files at compile time.
//
//go:embed migrations/*.sql
var sqlSchemas embed.FS
