// ABOUTME: SQLite schema for the narrative entity graph
// ABOUTME: Typed entity tables plus FTS5 keyword index and vec0 vector index
package sqlite

import "fmt"

// schemaTemplate contains all SQL statements for database initialization.
// The single %d is the embedding dimension of the vec0 index.
const schemaTemplate = `
-- Characters
CREATE TABLE IF NOT EXISTS characters (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    aliases TEXT,
    roles TEXT,
    description TEXT,
    profile TEXT,
    protected INTEGER NOT NULL DEFAULT 0,
    embedding BLOB,
    composite_text TEXT,
    embedding_stale INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Locations (self-referential containment hierarchy)
CREATE TABLE IF NOT EXISTS locations (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    loc_type TEXT,
    parent_id TEXT REFERENCES locations(id) ON DELETE SET NULL,
    protected INTEGER NOT NULL DEFAULT 0,
    embedding BLOB,
    composite_text TEXT,
    embedding_stale INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Events (the authored timeline; sequence orders the story)
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT,
    sequence INTEGER NOT NULL,
    date TEXT,
    date_precision TEXT,
    duration_end TEXT,
    protected INTEGER NOT NULL DEFAULT 0,
    embedding BLOB,
    composite_text TEXT,
    embedding_stale INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Scenes
CREATE TABLE IF NOT EXISTS scenes (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    summary TEXT,
    event_id TEXT REFERENCES events(id) ON DELETE SET NULL,
    primary_location_id TEXT REFERENCES locations(id) ON DELETE SET NULL,
    secondary_locations TEXT,
    protected INTEGER NOT NULL DEFAULT 0,
    embedding BLOB,
    composite_text TEXT,
    embedding_stale INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Scene participation (participates_in edges)
CREATE TABLE IF NOT EXISTS scene_participants (
    character_id TEXT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
    scene_id TEXT NOT NULL REFERENCES scenes(id) ON DELETE CASCADE,
    role TEXT,
    notes TEXT,
    PRIMARY KEY (character_id, scene_id)
);

-- Knowledge entities (fact text owned by a character)
CREATE TABLE IF NOT EXISTS knowledge (
    id TEXT PRIMARY KEY,
    character_id TEXT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
    fact TEXT NOT NULL,
    embedding BLOB,
    composite_text TEXT,
    embedding_stale INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Knowledge edges (append-only epistemic history)
CREATE TABLE IF NOT EXISTS knowledge_edges (
    id TEXT PRIMARY KEY,
    character_id TEXT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
    knowledge_id TEXT NOT NULL REFERENCES knowledge(id) ON DELETE CASCADE,
    certainty TEXT NOT NULL,
    learning_method TEXT,
    event_id TEXT REFERENCES events(id) ON DELETE SET NULL,
    source_character TEXT REFERENCES characters(id) ON DELETE SET NULL,
    truth_value INTEGER,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Freeform notes
CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    content TEXT,
    tags TEXT,
    embedding BLOB,
    composite_text TEXT,
    embedding_stale INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Note attachments to entities
CREATE TABLE IF NOT EXISTS note_links (
    note_id TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
    entity_id TEXT NOT NULL,
    PRIMARY KEY (note_id, entity_id)
);

-- Universe facts (world rules)
CREATE TABLE IF NOT EXISTS universe_facts (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT,
    categories TEXT,
    enforcement_level TEXT NOT NULL DEFAULT 'informational',
    scope TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Fact attachments (applies_to edges)
CREATE TABLE IF NOT EXISTS fact_links (
    fact_id TEXT NOT NULL REFERENCES universe_facts(id) ON DELETE CASCADE,
    entity_id TEXT NOT NULL,
    link_type TEXT NOT NULL DEFAULT 'manual',
    confidence REAL,
    PRIMARY KEY (fact_id, entity_id)
);

-- Perceives edges (directed observer -> target)
CREATE TABLE IF NOT EXISTS perceptions (
    id TEXT PRIMARY KEY,
    observer_id TEXT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
    target_id TEXT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
    rel_types TEXT,
    subtype TEXT,
    perception TEXT,
    feelings TEXT,
    tension_level INTEGER,
    history_notes TEXT,
    embedding BLOB,
    composite_text TEXT,
    embedding_stale INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Relates_to edges
CREATE TABLE IF NOT EXISTS relationships (
    id TEXT PRIMARY KEY,
    from_id TEXT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
    to_id TEXT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
    rel_type TEXT NOT NULL,
    subtype TEXT,
    label TEXT,
    embedding BLOB,
    composite_text TEXT,
    embedding_stale INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Persisted narrative phases
CREATE TABLE IF NOT EXISTS phases (
    id TEXT PRIMARY KEY,
    label TEXT NOT NULL,
    phase_order INTEGER NOT NULL,
    sequence_range_min INTEGER,
    sequence_range_max INTEGER,
    entity_type_counts TEXT,
    weight_content REAL NOT NULL,
    weight_neighborhood REAL NOT NULL,
    weight_temporal REAL NOT NULL,
    member_count INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Phase memberships (belongs_to_phase edges, set-valued)
CREATE TABLE IF NOT EXISTS phase_memberships (
    entity_id TEXT NOT NULL,
    phase_id TEXT NOT NULL REFERENCES phases(id) ON DELETE CASCADE,
    entity_type TEXT NOT NULL,
    entity_name TEXT,
    centrality REAL NOT NULL,
    sequence_position REAL,
    PRIMARY KEY (entity_id, phase_id)
);

-- Arc snapshots (append-only embedding history)
CREATE TABLE IF NOT EXISTS arc_snapshots (
    id TEXT PRIMARY KEY,
    entity_id TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    embedding BLOB NOT NULL,
    delta_magnitude REAL,
    event_id TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Model annotations (classifier/NER output with provenance)
CREATE TABLE IF NOT EXISTS annotations (
    id TEXT PRIMARY KEY,
    entity_id TEXT NOT NULL,
    model_type TEXT NOT NULL,
    model_version TEXT,
    output TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Unified keyword search content table, one row per searchable entity
CREATE TABLE IF NOT EXISTS search_docs (
    id INTEGER PRIMARY KEY,
    entity_id TEXT NOT NULL UNIQUE,
    entity_type TEXT NOT NULL,
    title TEXT,
    body TEXT
);

-- External-content FTS5 index over search_docs
CREATE VIRTUAL TABLE IF NOT EXISTS search_index USING fts5(
    title, body,
    content='search_docs',
    content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS search_docs_ai AFTER INSERT ON search_docs BEGIN
    INSERT INTO search_index(rowid, title, body) VALUES (new.id, new.title, new.body);
END;
CREATE TRIGGER IF NOT EXISTS search_docs_ad AFTER DELETE ON search_docs BEGIN
    INSERT INTO search_index(search_index, rowid, title, body) VALUES ('delete', old.id, old.title, old.body);
END;
CREATE TRIGGER IF NOT EXISTS search_docs_au AFTER UPDATE ON search_docs BEGIN
    INSERT INTO search_index(search_index, rowid, title, body) VALUES ('delete', old.id, old.title, old.body);
    INSERT INTO search_index(rowid, title, body) VALUES (new.id, new.title, new.body);
END;

-- Rowid mapping for the vector index
CREATE TABLE IF NOT EXISTS vec_map (
    id INTEGER PRIMARY KEY,
    entity_id TEXT NOT NULL UNIQUE,
    entity_type TEXT NOT NULL
);

-- sqlite-vec index; rowids are vec_map ids
CREATE VIRTUAL TABLE IF NOT EXISTS vec_index USING vec0(
    embedding float[%d] distance_metric=cosine
);

-- Indexes for efficient querying
CREATE INDEX IF NOT EXISTS idx_characters_name ON characters(name);
CREATE INDEX IF NOT EXISTS idx_locations_parent ON locations(parent_id);
CREATE INDEX IF NOT EXISTS idx_events_sequence ON events(sequence);
CREATE INDEX IF NOT EXISTS idx_scenes_event ON scenes(event_id);
CREATE INDEX IF NOT EXISTS idx_scenes_location ON scenes(primary_location_id);
CREATE INDEX IF NOT EXISTS idx_participants_scene ON scene_participants(scene_id);
CREATE INDEX IF NOT EXISTS idx_knowledge_character ON knowledge(character_id);
CREATE INDEX IF NOT EXISTS idx_kedges_character ON knowledge_edges(character_id);
CREATE INDEX IF NOT EXISTS idx_kedges_knowledge ON knowledge_edges(knowledge_id);
CREATE INDEX IF NOT EXISTS idx_note_links_entity ON note_links(entity_id);
CREATE INDEX IF NOT EXISTS idx_fact_links_entity ON fact_links(entity_id);
CREATE INDEX IF NOT EXISTS idx_perceptions_observer ON perceptions(observer_id);
CREATE INDEX IF NOT EXISTS idx_perceptions_target ON perceptions(target_id);
CREATE INDEX IF NOT EXISTS idx_relationships_from ON relationships(from_id);
CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(to_id);
CREATE INDEX IF NOT EXISTS idx_memberships_phase ON phase_memberships(phase_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_entity ON arc_snapshots(entity_id, created_at);
CREATE INDEX IF NOT EXISTS idx_annotations_entity ON annotations(entity_id);
`

// Schema returns the initialization SQL for the given embedding dimension
func Schema(dim int) string {
	return fmt.Sprintf(schemaTemplate, dim)
}

// SchemaVersion is the current schema version for migrations
const SchemaVersion = 1
