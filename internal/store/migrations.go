package store

type migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "create active channels",
		SQL: `
			CREATE TABLE active_channels (
				channel_id    TEXT PRIMARY KEY,
				activated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`,
	},
}
