package store

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS robots (
    id            TEXT PRIMARY KEY,
    x             DOUBLE PRECISION NOT NULL DEFAULT 0,
    y             DOUBLE PRECISION NOT NULL DEFAULT 0,
    z             DOUBLE PRECISION NOT NULL DEFAULT 0,
    heading       DOUBLE PRECISION NOT NULL DEFAULT 0,
    battery       DOUBLE PRECISION NOT NULL DEFAULT 100,
    status        TEXT NOT NULL DEFAULT 'offline',
    payload_class INTEGER NOT NULL DEFAULT 0,
    speed_class   INTEGER NOT NULL DEFAULT 0,
    mission_id    TEXT NOT NULL DEFAULT '',
    last_seen     TIMESTAMPTZ,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_robots_status ON robots(status);

CREATE TABLE IF NOT EXISTS missions (
    id            TEXT PRIMARY KEY,
    kind          TEXT NOT NULL DEFAULT 'transport',
    priority      INTEGER NOT NULL DEFAULT 0,
    waypoints     JSONB NOT NULL DEFAULT '[]',
    payload_class INTEGER NOT NULL DEFAULT 0,
    speed_class   INTEGER NOT NULL DEFAULT 0,
    pinned_robot  TEXT NOT NULL DEFAULT '',
    station_id    TEXT NOT NULL DEFAULT '',
    robot_id      TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL DEFAULT 'created',
    retries       INTEGER NOT NULL DEFAULT 0,
    fail_reason   TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_missions_status ON missions(status);
CREATE INDEX IF NOT EXISTS idx_missions_robot ON missions(robot_id);

CREATE TABLE IF NOT EXISTS charging_stations (
    id          TEXT PRIMARY KEY,
    x           DOUBLE PRECISION NOT NULL DEFAULT 0,
    y           DOUBLE PRECISION NOT NULL DEFAULT 0,
    capacity    INTEGER NOT NULL DEFAULT 1,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS audit_log (
    id          BIGSERIAL PRIMARY KEY,
    entity_type TEXT NOT NULL,
    entity_id   TEXT NOT NULL DEFAULT '',
    action      TEXT NOT NULL,
    old_value   TEXT NOT NULL DEFAULT '',
    new_value   TEXT NOT NULL DEFAULT '',
    actor       TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);

CREATE TABLE IF NOT EXISTS outbox (
    id          BIGSERIAL PRIMARY KEY,
    topic       TEXT NOT NULL,
    payload     BYTEA NOT NULL,
    msg_type    TEXT NOT NULL DEFAULT '',
    sender      TEXT NOT NULL DEFAULT '',
    retries     INTEGER NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    sent_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at) WHERE sent_at IS NULL;
`
