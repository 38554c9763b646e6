package database

// Schema for the five durable entities. Card instances and actions are
// upserted by (game_id, id): the engine journal replays the post-state of
// every mutation, so the newest write always wins.
const schema = `
CREATE TABLE IF NOT EXISTS games (
    id          UUID PRIMARY KEY,
    turn_holder UUID,
    finished    BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS players (
    id         UUID NOT NULL,
    game_id    UUID NOT NULL REFERENCES games(id),
    name       TEXT NOT NULL,
    birthdate  DATE NOT NULL,
    turn_order INT  NOT NULL,
    host       BOOLEAN NOT NULL DEFAULT FALSE,
    PRIMARY KEY (game_id, id)
);

CREATE TABLE IF NOT EXISTS card_instances (
    id       UUID NOT NULL,
    game_id  UUID NOT NULL REFERENCES games(id),
    def_id   INT  NOT NULL,
    location TEXT NOT NULL,
    position INT  NOT NULL,
    owner    UUID,
    hidden   BOOLEAN NOT NULL,
    PRIMARY KEY (game_id, id)
);

CREATE TABLE IF NOT EXISTS turns (
    id         INT  NOT NULL,
    game_id    UUID NOT NULL REFERENCES games(id),
    number     INT  NOT NULL,
    player_id  UUID NOT NULL,
    status     TEXT NOT NULL,
    started_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (game_id, id)
);

CREATE TABLE IF NOT EXISTS actions (
    id           INT  NOT NULL,
    game_id      UUID NOT NULL REFERENCES games(id),
    turn_id      INT  NOT NULL,
    actor        UUID NOT NULL,
    action_type  TEXT NOT NULL,
    card_name    TEXT NOT NULL DEFAULT '',
    result       TEXT NOT NULL,
    parent_id    INT  NOT NULL,
    triggered_by INT  NOT NULL,
    source       UUID,
    target       UUID,
    cards        UUID[],
    created_at   TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (game_id, id)
);

CREATE INDEX IF NOT EXISTS actions_game_turn_idx ON actions (game_id, turn_id);
CREATE INDEX IF NOT EXISTS card_instances_location_idx ON card_instances (game_id, location);
`
