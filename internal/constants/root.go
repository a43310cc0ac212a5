package constants

import "time"

const (
	AppName            = "daybook"
	DefaultKeyringUser = "database-connection"
	SessionKeyringUser = "session-token"
	DefaultConfigDir   = "~/.config/daybook"
	DefaultConfigPath  = "~/.config/daybook/daybook.db"
	ConfigFileName     = "config.yaml"
	Version            = "v0.3.0"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// AnonymousAuthor is shown for posts and comments written without a display name
	AnonymousAuthor = "Anonymous User"

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "daybook-"
	BackupFileSuffix = ".db.zst"

	// Read-modify-write retry budget on revision conflicts
	MaxConflictRetries = 5

	// Server defaults
	DefaultServerAddr   = "127.0.0.1:8420"
	SessionCookieName   = "daybook_session"
	SessionTTL          = 30 * 24 * time.Hour
	SSEKeepAlive        = 25 * time.Second
	WatchDebounce       = 50 * time.Millisecond
	NATSReadyTimeout    = 5 * time.Second
	PostgresNotifyTopic = "daybook_changes"
)

// Collections
const (
	CollectionTodos   = "todos"
	CollectionHabits  = "habits"
	CollectionJournal = "journalEntries"
	CollectionPosts   = "posts"
	CollectionUsers   = "users"
)

// Collections lists every collection the application reads or writes.
var Collections = []string{
	CollectionTodos,
	CollectionHabits,
	CollectionJournal,
	CollectionPosts,
	CollectionUsers,
}

// Document field names shared between the stores and the feature packages.
const (
	FieldName        = "name"
	FieldIsCompleted = "isCompleted"
	FieldIsImportant = "isImportant"
	FieldCompleted   = "completed"
	FieldCreatedAt   = "createdAt"
	FieldOwnerID     = "ownerId"
	FieldTitle       = "title"
	FieldContent     = "content"
	FieldLikedBy     = "likedBy"
	FieldComments    = "comments"
	FieldAuthor      = "author"
	FieldAuthorEmail = "authorEmail"
	FieldAuthorID    = "authorId"
	FieldEmail       = "email"
	FieldDisplayName = "displayName"
	FieldLastSeenAt  = "lastSeenAt"
)
