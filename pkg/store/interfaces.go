package store

// Store is the durable, append-only transcript for one session.
type Store interface {
	// ID returns the session id this transcript belongs to.
	ID() string

	// Path returns the absolute path of the backing file.
	Path() string

	// Append persists one message. The write completes before Append
	// returns; on failure the caller keeps the message in memory and
	// surfaces a warning rather than rolling back.
	Append(m Message) error

	// Load reconstructs the full message sequence from disk. Malformed
	// lines are skipped with a warning, never an error.
	Load() ([]Message, error)

	// Delete removes the backing file. Deleting an already-absent
	// transcript is not an error.
	Delete() error

	// Close releases the file handle without deleting anything.
	Close() error
}

// Dir manages the history directory holding one transcript file per session.
type Dir interface {
	// Open returns the transcript for id, creating an empty file if none
	// exists yet.
	Open(id string) (Store, error)

	// IDs enumerates persisted session ids, sorted by sequence number.
	IDs() ([]string, error)
}
