// Package database manages the PostgreSQL connection pool and
// bootstraps the schema on startup.
package database

// Schema contains the SQL statements for the community database. Every
// statement is idempotent.
const Schema = `
-- users: Community members.
--
-- Roles:
--   member   : default role for new accounts.
--   moderator: can remove forum content and lock threads.
--   admin    : decides verification requests, reports, festival
--               submissions and can grant credits.
--
-- Statuses:
--   active   : normal operation.
--   suspended: cannot sign in; content stays visible.
--   banned   : cannot sign in; content stays visible until removed.
--
-- verification_status mirrors the latest verification request:
--   unverified → pending → approved | rejected (rejected may resubmit).
CREATE TABLE IF NOT EXISTS users (
    id                  BIGSERIAL PRIMARY KEY,
    email               VARCHAR(255) UNIQUE NOT NULL,
    username            VARCHAR(32) UNIQUE NOT NULL,
    password            VARCHAR(255) NOT NULL,
    display_name        VARCHAR(100) NOT NULL DEFAULT '',
    bio                 TEXT NOT NULL DEFAULT '',
    location            VARCHAR(100) NOT NULL DEFAULT '',
    military_branch     VARCHAR(50) NOT NULL DEFAULT '',
    specialties         TEXT[] NOT NULL DEFAULT '{}',
    avatar_cid          VARCHAR(255) NOT NULL DEFAULT '',
    role                VARCHAR(20) NOT NULL DEFAULT 'member'
                        CHECK (role IN ('member', 'moderator', 'admin')),
    status              VARCHAR(20) NOT NULL DEFAULT 'active'
                        CHECK (status IN ('active', 'suspended', 'banned')),
    verification_status VARCHAR(20) NOT NULL DEFAULT 'unverified'
                        CHECK (verification_status IN ('unverified', 'pending', 'approved', 'rejected')),
    tutorial_step       VARCHAR(30) NOT NULL DEFAULT 'welcome',
    points              INTEGER NOT NULL DEFAULT 0,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- verification_requests: History of military-status submissions.
CREATE TABLE IF NOT EXISTS verification_requests (
    id            BIGSERIAL PRIMARY KEY,
    user_id       BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    branch        VARCHAR(50) NOT NULL,
    service_start DATE NOT NULL,
    service_end   DATE,
    document_cid  VARCHAR(255) NOT NULL DEFAULT '',
    status        VARCHAR(20) NOT NULL DEFAULT 'pending'
                  CHECK (status IN ('pending', 'approved', 'rejected')),
    note          TEXT NOT NULL DEFAULT '',
    decided_by    BIGINT REFERENCES users(id) ON DELETE SET NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    decided_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_verification_requests_user ON verification_requests(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_verification_requests_status ON verification_requests(status);

CREATE TABLE IF NOT EXISTS scripts (
    id          BIGSERIAL PRIMARY KEY,
    owner_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    title       VARCHAR(200) NOT NULL CHECK (length(btrim(title)) > 0),
    logline     TEXT NOT NULL DEFAULT '',
    genre       VARCHAR(30) NOT NULL DEFAULT 'drama',
    content     TEXT NOT NULL DEFAULT '',
    visibility  VARCHAR(20) NOT NULL DEFAULT 'private'
                CHECK (visibility IN ('private', 'members', 'public')),
    page_count  INTEGER NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_scripts_owner ON scripts(owner_id);
CREATE INDEX IF NOT EXISTS idx_scripts_visibility ON scripts(visibility, updated_at DESC);

CREATE TABLE IF NOT EXISTS projects (
    id          BIGSERIAL PRIMARY KEY,
    owner_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    script_id   BIGINT REFERENCES scripts(id) ON DELETE SET NULL,
    title       VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status      VARCHAR(30) NOT NULL DEFAULT 'development'
                CHECK (status IN ('development', 'pre_production', 'production', 'post_production', 'completed')),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner_id);

CREATE TABLE IF NOT EXISTS project_members (
    project_id  BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    user_id     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    role        VARCHAR(50) NOT NULL DEFAULT 'crew',
    added_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (project_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_project_members_user ON project_members(user_id);

CREATE TABLE IF NOT EXISTS forum_categories (
    id          SERIAL PRIMARY KEY,
    slug        VARCHAR(50) UNIQUE NOT NULL,
    name        VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    position    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS forum_posts (
    id            BIGSERIAL PRIMARY KEY,
    category_id   INTEGER NOT NULL REFERENCES forum_categories(id) ON DELETE CASCADE,
    author_id     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    title         VARCHAR(200) NOT NULL,
    body          TEXT NOT NULL,
    locked        BOOLEAN NOT NULL DEFAULT FALSE,
    pinned        BOOLEAN NOT NULL DEFAULT FALSE,
    reply_count   INTEGER NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_reply_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_forum_posts_category ON forum_posts(category_id, pinned DESC, last_reply_at DESC);

CREATE TABLE IF NOT EXISTS forum_replies (
    id          BIGSERIAL PRIMARY KEY,
    post_id     BIGINT NOT NULL REFERENCES forum_posts(id) ON DELETE CASCADE,
    author_id   BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    body        TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_forum_replies_post ON forum_replies(post_id, created_at);

CREATE TABLE IF NOT EXISTS messages (
    id           BIGSERIAL PRIMARY KEY,
    sender_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    recipient_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    body         TEXT NOT NULL,
    read_at      TIMESTAMPTZ,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (sender_id <> recipient_id)
);
CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(LEAST(sender_id, recipient_id), GREATEST(sender_id, recipient_id), created_at DESC);
CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(recipient_id) WHERE read_at IS NULL;

-- friend_requests: At most one live (pending or accepted) row per pair,
-- regardless of direction.
CREATE TABLE IF NOT EXISTS friend_requests (
    id           BIGSERIAL PRIMARY KEY,
    from_id      BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    to_id        BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    status       VARCHAR(20) NOT NULL DEFAULT 'pending'
                 CHECK (status IN ('pending', 'accepted', 'declined', 'cancelled', 'removed')),
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    responded_at TIMESTAMPTZ,
    CHECK (from_id <> to_id)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_friend_requests_live_pair
    ON friend_requests(LEAST(from_id, to_id), GREATEST(from_id, to_id))
    WHERE status IN ('pending', 'accepted');

CREATE TABLE IF NOT EXISTS notifications (
    id          BIGSERIAL PRIMARY KEY,
    user_id     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    kind        VARCHAR(40) NOT NULL,
    title       VARCHAR(200) NOT NULL,
    body        TEXT NOT NULL DEFAULT '',
    link        VARCHAR(500) NOT NULL DEFAULT '',
    read_at     TIMESTAMPTZ,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications(user_id) WHERE read_at IS NULL;

-- user_achievements: Awarded achievement codes. The catalog itself lives
-- in code.
CREATE TABLE IF NOT EXISTS user_achievements (
    user_id     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    code        VARCHAR(40) NOT NULL,
    awarded_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, code)
);

-- credit_transactions: Append-only credit ledger. A user's balance is the
-- sum of their rows. A spend can be refunded at most once.
CREATE TABLE IF NOT EXISTS credit_transactions (
    id          BIGSERIAL PRIMARY KEY,
    user_id     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    amount      BIGINT NOT NULL CHECK (amount <> 0),
    kind        VARCHAR(20) NOT NULL
                CHECK (kind IN ('signup_bonus', 'purchase', 'grant', 'spend', 'refund')),
    reference   VARCHAR(255) NOT NULL DEFAULT '',
    note        TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_credit_transactions_user ON credit_transactions(user_id, created_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS idx_credit_transactions_refund_once
    ON credit_transactions(reference) WHERE kind = 'refund';

CREATE TABLE IF NOT EXISTS blobs (
    owner_id   BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    cid        VARCHAR(255) NOT NULL,
    mime_type  VARCHAR(255) NOT NULL,
    size       BIGINT NOT NULL,
    data       BYTEA NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (owner_id, cid)
);
CREATE INDEX IF NOT EXISTS idx_blobs_cid ON blobs(cid);

CREATE TABLE IF NOT EXISTS generations (
    id           UUID PRIMARY KEY,
    user_id      BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    tool         VARCHAR(30) NOT NULL,
    prompt       TEXT NOT NULL,
    script_id    BIGINT REFERENCES scripts(id) ON DELETE SET NULL,
    cost         BIGINT NOT NULL,
    status       VARCHAR(20) NOT NULL DEFAULT 'pending'
                 CHECK (status IN ('pending', 'succeeded', 'failed')),
    output       TEXT NOT NULL DEFAULT '',
    asset_id     BIGINT,
    error        TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_generations_user ON generations(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS design_assets (
    id            BIGSERIAL PRIMARY KEY,
    owner_id      BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    title         VARCHAR(200) NOT NULL,
    kind          VARCHAR(20) NOT NULL CHECK (kind IN ('poster', 'upload')),
    blob_cid      VARCHAR(255) NOT NULL,
    mime_type     VARCHAR(255) NOT NULL,
    prompt        TEXT NOT NULL DEFAULT '',
    generation_id UUID REFERENCES generations(id) ON DELETE SET NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_design_assets_owner ON design_assets(owner_id, created_at DESC);

CREATE TABLE IF NOT EXISTS festival_submissions (
    id            BIGSERIAL PRIMARY KEY,
    project_id    BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    owner_id      BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    festival_name VARCHAR(200) NOT NULL,
    category      VARCHAR(100) NOT NULL DEFAULT '',
    deadline      DATE,
    status        VARCHAR(20) NOT NULL DEFAULT 'submitted'
                  CHECK (status IN ('draft', 'submitted', 'accepted', 'rejected', 'withdrawn')),
    decision_note TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_festival_submissions_owner ON festival_submissions(owner_id);
CREATE INDEX IF NOT EXISTS idx_festival_submissions_status ON festival_submissions(status);

CREATE TABLE IF NOT EXISTS reports (
    id              BIGSERIAL PRIMARY KEY,
    reporter_id     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    target_type     VARCHAR(20) NOT NULL
                    CHECK (target_type IN ('user', 'script', 'post', 'reply', 'message')),
    target_id       BIGINT NOT NULL,
    reason          TEXT NOT NULL,
    status          VARCHAR(20) NOT NULL DEFAULT 'open'
                    CHECK (status IN ('open', 'resolved', 'dismissed')),
    resolution_note TEXT NOT NULL DEFAULT '',
    resolved_by     BIGINT REFERENCES users(id) ON DELETE SET NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    resolved_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status, created_at);
`

// Seed inserts the fixed forum categories.
const Seed = `
INSERT INTO forum_categories (slug, name, description, position) VALUES
    ('general',       'General',       'Introductions and open discussion', 1),
    ('screenwriting', 'Screenwriting', 'Craft, structure and feedback on pages', 2),
    ('production',    'Production',    'Crewing, gear, locations and budgets', 3),
    ('veterans',      'Veterans',      'Service members and veterans in film', 4),
    ('festivals',     'Festivals',     'Submissions, deadlines and screenings', 5)
ON CONFLICT (slug) DO NOTHING;
`
