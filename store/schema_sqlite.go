package store

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS robots (
    id            TEXT PRIMARY KEY,
    x             REAL NOT NULL DEFAULT 0,
    y             REAL NOT NULL DEFAULT 0,
    z             REAL NOT NULL DEFAULT 0,
    heading       REAL NOT NULL DEFAULT 0,
    battery       REAL NOT NULL DEFAULT 100,
    status        TEXT NOT NULL DEFAULT 'offline',
    payload_class INTEGER NOT NULL DEFAULT 0,
    speed_class   INTEGER NOT NULL DEFAULT 0,
    mission_id    TEXT NOT NULL DEFAULT '',
    last_seen     TEXT,
    created_at    TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    updated_at    TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_robots_status ON robots(status);

CREATE TABLE IF NOT EXISTS missions (
    id            TEXT PRIMARY KEY,
    kind          TEXT NOT NULL DEFAULT 'transport',
    priority      INTEGER NOT NULL DEFAULT 0,
    waypoints     TEXT NOT NULL DEFAULT '[]',
    payload_class INTEGER NOT NULL DEFAULT 0,
    speed_class   INTEGER NOT NULL DEFAULT 0,
    pinned_robot  TEXT NOT NULL DEFAULT '',
    station_id    TEXT NOT NULL DEFAULT '',
    robot_id      TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL DEFAULT 'created',
    retries       INTEGER NOT NULL DEFAULT 0,
    fail_reason   TEXT NOT NULL DEFAULT '',
    created_at    TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    updated_at    TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_missions_status ON missions(status);
CREATE INDEX IF NOT EXISTS idx_missions_robot ON missions(robot_id);

CREATE TABLE IF NOT EXISTS charging_stations (
    id          TEXT PRIMARY KEY,
    x           REAL NOT NULL DEFAULT 0,
    y           REAL NOT NULL DEFAULT 0,
    capacity    INTEGER NOT NULL DEFAULT 1,
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);

CREATE TABLE IF NOT EXISTS audit_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_type TEXT NOT NULL,
    entity_id   TEXT NOT NULL DEFAULT '',
    action      TEXT NOT NULL,
    old_value   TEXT NOT NULL DEFAULT '',
    new_value   TEXT NOT NULL DEFAULT '',
    actor       TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);

CREATE TABLE IF NOT EXISTS outbox (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    topic       TEXT NOT NULL,
    payload     BLOB NOT NULL,
    msg_type    TEXT NOT NULL DEFAULT '',
    sender      TEXT NOT NULL DEFAULT '',
    retries     INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    sent_at     TEXT
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at) WHERE sent_at IS NULL;
`
