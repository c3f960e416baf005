package db

// Timestamps are Unix milliseconds (BIGINT) on both drivers. The option
// shuffle seed of an attempt is its created_at value.

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS categories (
  id TEXT PRIMARY KEY,
  company_id TEXT NOT NULL,
  name TEXT NOT NULL,
  parent_id TEXT,
  allow_multiple INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  company_id TEXT NOT NULL,
  type TEXT NOT NULL CHECK (type IN ('discursive','options')),
  description TEXT NOT NULL DEFAULT '',
  max_length INTEGER,
  enabled INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS ix_questions_company ON questions (company_id, enabled, type);

CREATE TABLE IF NOT EXISTS question_options (
  id TEXT PRIMARY KEY,
  question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  description TEXT NOT NULL DEFAULT '',
  is_correct INTEGER NOT NULL DEFAULT 0,
  position INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS question_categories (
  question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
  PRIMARY KEY (question_id, category_id)
);

CREATE TABLE IF NOT EXISTS exams (
  id TEXT PRIMARY KEY,
  company_id TEXT NOT NULL,
  name TEXT NOT NULL,
  min_score REAL,
  max_score REAL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS exam_rules (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  question_id TEXT,
  question_type TEXT,
  questions_count INTEGER NOT NULL DEFAULT 1,
  score REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS exam_rule_categories (
  rule_id INTEGER NOT NULL REFERENCES exam_rules(id) ON DELETE CASCADE,
  category_id TEXT NOT NULL,
  PRIMARY KEY (rule_id, category_id)
);

CREATE TABLE IF NOT EXISTS applications (
  id TEXT PRIMARY KEY,
  company_id TEXT NOT NULL,
  exam_id TEXT NOT NULL REFERENCES exams(id),
  started_at INTEGER NOT NULL,
  ended_at INTEGER NOT NULL,
  attempts INTEGER NOT NULL DEFAULT 1,
  limit_time INTEGER NOT NULL DEFAULT 0,
  show_answers INTEGER NOT NULL DEFAULT 0,
  show_scores INTEGER NOT NULL DEFAULT 0,
  allow_feedback INTEGER NOT NULL DEFAULT 0,
  feedback_text TEXT
);

CREATE TABLE IF NOT EXISTS student_applications (
  id TEXT PRIMARY KEY,
  company_id TEXT NOT NULL,
  application_id TEXT NOT NULL REFERENCES applications(id),
  student_id TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  started_at INTEGER,
  submitted_at INTEGER,
  feedback TEXT,
  feedback_tags TEXT
);
CREATE INDEX IF NOT EXISTS ix_student_applications_pair ON student_applications (company_id, application_id, student_id, created_at);
CREATE UNIQUE INDEX IF NOT EXISTS uq_student_applications_open ON student_applications (company_id, application_id, student_id) WHERE submitted_at IS NULL;

CREATE TABLE IF NOT EXISTS student_application_questions (
  id TEXT PRIMARY KEY,
  attempt_id TEXT NOT NULL REFERENCES student_applications(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  position INTEGER NOT NULL,
  answer TEXT,
  question_score REAL NOT NULL,
  student_score REAL,
  grader_id TEXT,
  feedback TEXT,
  UNIQUE (attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS event_log (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  company_id TEXT NOT NULL,
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS categories (
  id TEXT PRIMARY KEY,
  company_id TEXT NOT NULL,
  name TEXT NOT NULL,
  parent_id TEXT,
  allow_multiple BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  company_id TEXT NOT NULL,
  type TEXT NOT NULL CHECK (type IN ('discursive','options')),
  description TEXT NOT NULL DEFAULT '',
  max_length INTEGER,
  enabled BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS ix_questions_company ON questions (company_id, enabled, type);

CREATE TABLE IF NOT EXISTS question_options (
  id TEXT PRIMARY KEY,
  question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  description TEXT NOT NULL DEFAULT '',
  is_correct BOOLEAN NOT NULL DEFAULT FALSE,
  position INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS question_categories (
  question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
  PRIMARY KEY (question_id, category_id)
);

CREATE TABLE IF NOT EXISTS exams (
  id TEXT PRIMARY KEY,
  company_id TEXT NOT NULL,
  name TEXT NOT NULL,
  min_score DOUBLE PRECISION,
  max_score DOUBLE PRECISION,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS exam_rules (
  id BIGSERIAL PRIMARY KEY,
  exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  question_id TEXT,
  question_type TEXT,
  questions_count INTEGER NOT NULL DEFAULT 1,
  score DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS exam_rule_categories (
  rule_id BIGINT NOT NULL REFERENCES exam_rules(id) ON DELETE CASCADE,
  category_id TEXT NOT NULL,
  PRIMARY KEY (rule_id, category_id)
);

CREATE TABLE IF NOT EXISTS applications (
  id TEXT PRIMARY KEY,
  company_id TEXT NOT NULL,
  exam_id TEXT NOT NULL REFERENCES exams(id),
  started_at BIGINT NOT NULL,
  ended_at BIGINT NOT NULL,
  attempts INTEGER NOT NULL DEFAULT 1,
  limit_time INTEGER NOT NULL DEFAULT 0,
  show_answers BOOLEAN NOT NULL DEFAULT FALSE,
  show_scores BOOLEAN NOT NULL DEFAULT FALSE,
  allow_feedback BOOLEAN NOT NULL DEFAULT FALSE,
  feedback_text TEXT
);

CREATE TABLE IF NOT EXISTS student_applications (
  id TEXT PRIMARY KEY,
  company_id TEXT NOT NULL,
  application_id TEXT NOT NULL REFERENCES applications(id),
  student_id TEXT NOT NULL,
  created_at BIGINT NOT NULL,
  started_at BIGINT,
  submitted_at BIGINT,
  feedback TEXT,
  feedback_tags TEXT
);
CREATE INDEX IF NOT EXISTS ix_student_applications_pair ON student_applications (company_id, application_id, student_id, created_at);
CREATE UNIQUE INDEX IF NOT EXISTS uq_student_applications_open ON student_applications (company_id, application_id, student_id) WHERE submitted_at IS NULL;

CREATE TABLE IF NOT EXISTS student_application_questions (
  id TEXT PRIMARY KEY,
  attempt_id TEXT NOT NULL REFERENCES student_applications(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  position INTEGER NOT NULL,
  answer TEXT,
  question_score DOUBLE PRECISION NOT NULL,
  student_score DOUBLE PRECISION,
  grader_id TEXT,
  feedback TEXT,
  UNIQUE (attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS event_log (
  seq BIGSERIAL PRIMARY KEY,
  company_id TEXT NOT NULL,
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
