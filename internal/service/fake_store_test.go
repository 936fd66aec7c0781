package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/repository"
)

// memDB is an in-memory UnitOfWork. Writes apply immediately and each
// transaction keeps an undo log for rollback. Transactions only wait on the
// locks the code under test takes: the (exam, student) advisory lock and
// session row locks, held until the transaction ends.
type memDB struct {
	mu sync.Mutex

	users      map[int]model.User
	nextUserID int
	exams      map[uuid.UUID]model.Exam
	questions  []model.Question
	sessions   map[uuid.UUID]model.ExamSession
	violations []model.Violation
	results    map[uuid.UUID]model.Result

	// failResultCreate makes the next Results.Create fail.
	failResultCreate error

	lockMu   sync.Mutex
	lockCond *sync.Cond
	locks    map[string]*memTx

	// onLockWait runs when a transaction blocks on a lock held by another.
	onLockWait func(key string)
	// afterHasCompleted runs once, after the next HasCompleted read.
	afterHasCompleted func()
	// afterListQuestions runs once, after the next Questions.ListByExam read.
	afterListQuestions func()
}

func newMemDB() *memDB {
	db := &memDB{
		users:    map[int]model.User{},
		exams:    map[uuid.UUID]model.Exam{},
		sessions: map[uuid.UUID]model.ExamSession{},
		results:  map[uuid.UUID]model.Result{},
		locks:    map[string]*memTx{},
	}
	db.lockCond = sync.NewCond(&db.lockMu)
	return db
}

// memTx is one open transaction.
type memTx struct {
	db   *memDB
	undo []func()
	held []string
}

// onRollback records how to revert a write. Writes outside a transaction
// commit at once.
func (tx *memTx) onRollback(fn func()) {
	if tx != nil {
		tx.undo = append(tx.undo, fn)
	}
}

// lock blocks until key is free or already held by tx.
func (tx *memTx) lock(key string) {
	if tx == nil {
		return
	}
	db := tx.db
	db.lockMu.Lock()
	defer db.lockMu.Unlock()
	notified := false
	for {
		owner, taken := db.locks[key]
		if !taken {
			db.locks[key] = tx
			tx.held = append(tx.held, key)
			return
		}
		if owner == tx {
			return
		}
		if !notified && db.onLockWait != nil {
			notified = true
			db.onLockWait(key)
		}
		db.lockCond.Wait()
	}
}

func (tx *memTx) release() {
	db := tx.db
	db.lockMu.Lock()
	for _, key := range tx.held {
		delete(db.locks, key)
	}
	tx.held = nil
	db.lockCond.Broadcast()
	db.lockMu.Unlock()
}

func (tx *memTx) rollback() {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func sessionRowKey(id uuid.UUID) string { return "session:" + id.String() }

func studentExamKey(examID uuid.UUID, studentID int) string {
	return fmt.Sprintf("advisory:%s:%d", examID, studentID)
}

func (db *memDB) repos(tx *memTx) Repos {
	return Repos{
		Users:      memUsers{db, tx},
		Exams:      memExams{db, tx},
		Questions:  memQuestions{db, tx},
		Sessions:   memSessions{db, tx},
		Violations: memViolations{db, tx},
		Results:    memResults{db, tx},
		Analytics:  memAnalytics{db},
	}
}

func (db *memDB) Repos() Repos { return db.repos(nil) }

func (db *memDB) InTx(ctx context.Context, fn func(r Repos) error) error {
	tx := &memTx{db: db}
	defer tx.release()

	if err := fn(db.repos(tx)); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// takeHook returns and clears a one-shot hook.
func (db *memDB) takeHook(h *func()) func() {
	db.mu.Lock()
	defer db.mu.Unlock()
	fn := *h
	*h = nil
	return fn
}

// ─── Seed helpers ────────────────────────────────────────────────────

func (db *memDB) addExam(mut func(e *model.Exam)) model.Exam {
	e := model.Exam{
		ID:              uuid.New(),
		Title:           "Sample Exam",
		DurationMinutes: 30,
		TotalMarks:      10,
		PassingMarks:    5,
		IsActive:        true,
	}
	if mut != nil {
		mut(&e)
	}
	db.mu.Lock()
	db.exams[e.ID] = e
	db.mu.Unlock()
	return e
}

func (db *memDB) addQuestion(examID uuid.UUID, correct string, marks int) model.Question {
	q := model.Question{
		ID:            uuid.New(),
		ExamID:        examID,
		QuestionText:  "Q" + correct,
		OptionA:       "a",
		OptionB:       "b",
		OptionC:       "c",
		OptionD:       "d",
		CorrectAnswer: correct,
		Marks:         marks,
	}
	db.mu.Lock()
	db.questions = append(db.questions, q)
	db.mu.Unlock()
	return q
}

// removeQuestion deletes a question by id; callers hold db.mu.
func (db *memDB) removeQuestion(id uuid.UUID) {
	for i := range db.questions {
		if db.questions[i].ID == id {
			db.questions = append(db.questions[:i:i], db.questions[i+1:]...)
			return
		}
	}
}

func (db *memDB) addUser(role model.Role, name string) model.User {
	u := &model.User{Username: name, Email: name + "@example.com", FullName: "User " + name, Role: role}
	if err := (memUsers{db: db}).Create(context.Background(), u); err != nil {
		panic(err)
	}
	return *u
}

func (db *memDB) resultCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.results)
}

func (db *memDB) session(id uuid.UUID) model.ExamSession {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.sessions[id]
}

// ─── Users ───────────────────────────────────────────────────────────

type memUsers struct {
	db *memDB
	tx *memTx
}

func (r memUsers) Create(_ context.Context, u *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.users {
		if existing.Username == u.Username {
			return fmt.Errorf("users_username_key: %w", repository.ErrDuplicate)
		}
		if existing.Email == u.Email {
			return fmt.Errorf("users_email_key: %w", repository.ErrDuplicate)
		}
	}
	r.db.nextUserID++
	u.ID = r.db.nextUserID
	u.CreatedAt = time.Now()
	r.db.users[u.ID] = *u
	id := u.ID
	r.tx.onRollback(func() { delete(r.db.users, id) })
	return nil
}

func (r memUsers) GetByID(_ context.Context, id int) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r memUsers) GetByLogin(_ context.Context, login string) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Username == login || strings.EqualFold(u.Email, login) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memUsers) UpdatePassword(_ context.Context, id int, hash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	old := u
	u.PasswordHash = hash
	r.db.users[id] = u
	r.tx.onRollback(func() { r.db.users[id] = old })
	return nil
}

func (r memUsers) CountByRole(_ context.Context, role model.Role) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, u := range r.db.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// ─── Exams ───────────────────────────────────────────────────────────

type memExams struct {
	db *memDB
	tx *memTx
}

func (r memExams) withCount(e model.Exam) model.Exam {
	e.QuestionCount = 0
	for _, q := range r.db.questions {
		if q.ExamID == e.ID {
			e.QuestionCount++
		}
	}
	return e
}

func (r memExams) Create(_ context.Context, e *model.Exam) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	e.CreatedAt, e.UpdatedAt = now, now
	r.db.exams[e.ID] = *e
	id := e.ID
	r.tx.onRollback(func() { delete(r.db.exams, id) })
	return nil
}

func (r memExams) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.exams[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	e = r.withCount(e)
	return &e, nil
}

func (r memExams) list(activeOnly bool) []model.Exam {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []model.Exam{}
	for _, e := range r.db.exams {
		if activeOnly && !e.IsActive {
			continue
		}
		out = append(out, r.withCount(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

func (r memExams) List(context.Context) ([]model.Exam, error) { return r.list(false), nil }

func (r memExams) ListActive(context.Context) ([]model.Exam, error) { return r.list(true), nil }

func (r memExams) Update(_ context.Context, e *model.Exam) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	old, ok := r.db.exams[e.ID]
	if !ok {
		return repository.ErrNotFound
	}
	e.UpdatedAt = time.Now()
	r.db.exams[e.ID] = *e
	r.tx.onRollback(func() { r.db.exams[old.ID] = old })
	return nil
}

func (r memExams) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	old, ok := r.db.exams[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.db.exams, id)
	var kept, removed []model.Question
	for _, q := range r.db.questions {
		if q.ExamID != id {
			kept = append(kept, q)
		} else {
			removed = append(removed, q)
		}
	}
	r.db.questions = kept
	r.tx.onRollback(func() {
		r.db.exams[id] = old
		r.db.questions = append(r.db.questions, removed...)
	})
	return nil
}

// ─── Questions ───────────────────────────────────────────────────────

type memQuestions struct {
	db *memDB
	tx *memTx
}

func (r memQuestions) Create(_ context.Context, q *model.Question) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.exams[q.ExamID]; !ok {
		return repository.ErrNotFound
	}
	q.CreatedAt = time.Now()
	r.db.questions = append(r.db.questions, *q)
	id := q.ID
	r.tx.onRollback(func() { r.db.removeQuestion(id) })
	return nil
}

func (r memQuestions) GetByID(_ context.Context, id uuid.UUID) (*model.Question, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, q := range r.db.questions {
		if q.ID == id {
			return &q, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memQuestions) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Question, error) {
	r.db.mu.Lock()
	out := []model.Question{}
	for _, q := range r.db.questions {
		if q.ExamID == examID {
			out = append(out, q)
		}
	}
	r.db.mu.Unlock()

	if hook := r.db.takeHook(&r.db.afterListQuestions); hook != nil {
		hook()
	}
	return out, nil
}

func (r memQuestions) Update(_ context.Context, q *model.Question) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range r.db.questions {
		if r.db.questions[i].ID == q.ID {
			old := r.db.questions[i]
			r.db.questions[i] = *q
			r.tx.onRollback(func() {
				for j := range r.db.questions {
					if r.db.questions[j].ID == old.ID {
						r.db.questions[j] = old
					}
				}
			})
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r memQuestions) Delete(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i, q := range r.db.questions {
		if q.ID == id {
			r.db.questions = append(r.db.questions[:i:i], r.db.questions[i+1:]...)
			r.tx.onRollback(func() { r.db.questions = append(r.db.questions, q) })
			return q.ExamID, nil
		}
	}
	return uuid.Nil, repository.ErrNotFound
}

// ─── Sessions ────────────────────────────────────────────────────────

type memSessions struct {
	db *memDB
	tx *memTx
}

func (r memSessions) LockStudentExam(_ context.Context, examID uuid.UUID, studentID int) error {
	r.tx.lock(studentExamKey(examID, studentID))
	return nil
}

func (r memSessions) HasCompleted(_ context.Context, examID uuid.UUID, studentID int) (bool, error) {
	r.db.mu.Lock()
	found := false
	for _, s := range r.db.sessions {
		if s.ExamID == examID && s.StudentID == studentID && s.IsCompleted {
			found = true
			break
		}
	}
	r.db.mu.Unlock()

	if hook := r.db.takeHook(&r.db.afterHasCompleted); hook != nil {
		hook()
	}
	return found, nil
}

func (r memSessions) FindIncomplete(_ context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, s := range r.db.sessions {
		if s.ExamID == examID && s.StudentID == studentID && !s.IsCompleted {
			return &s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memSessions) Create(_ context.Context, s *model.ExamSession) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.sessions[s.ID] = *s
	id := s.ID
	r.tx.onRollback(func() { delete(r.db.sessions, id) })
	return nil
}

func (r memSessions) GetByID(_ context.Context, id uuid.UUID) (*model.ExamSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r memSessions) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	r.tx.lock(sessionRowKey(id))
	return r.GetByID(ctx, id)
}

// Complete and IncrementViolations are UPDATEs, which row-lock like FOR UPDATE.
func (r memSessions) Complete(_ context.Context, s *model.ExamSession) error {
	r.tx.lock(sessionRowKey(s.ID))
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.sessions[s.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.IsCompleted {
		return repository.ErrConflict
	}
	r.db.sessions[s.ID] = *s
	r.tx.onRollback(func() { r.db.sessions[cur.ID] = cur })
	return nil
}

func (r memSessions) IncrementViolations(_ context.Context, id uuid.UUID) (int, error) {
	r.tx.lock(sessionRowKey(id))
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.sessions[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if s.IsCompleted {
		return 0, repository.ErrConflict
	}
	old := s
	s.ViolationCount++
	r.db.sessions[id] = s
	r.tx.onRollback(func() { r.db.sessions[id] = old })
	return s.ViolationCount, nil
}

func (r memSessions) ListByStudent(_ context.Context, studentID int) ([]model.ExamSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []model.ExamSession{}
	for _, s := range r.db.sessions {
		if s.StudentID == studentID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r memSessions) CountByExam(_ context.Context, examID uuid.UUID) (*repository.SessionCounts, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := &repository.SessionCounts{TakenAt: time.Now()}
	for _, s := range r.db.sessions {
		if s.ExamID != examID {
			continue
		}
		if s.IsCompleted {
			c.Completed++
		} else {
			c.InProgress++
		}
		if s.AutoSubmitted {
			c.AutoSubmitted++
		}
		c.TotalViolations += s.ViolationCount
	}
	return c, nil
}

// ─── Violations ──────────────────────────────────────────────────────

type memViolations struct {
	db *memDB
	tx *memTx
}

func (r memViolations) Create(_ context.Context, v *model.Violation) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.violations = append(r.db.violations, *v)
	id := v.ID
	r.tx.onRollback(func() {
		for i := range r.db.violations {
			if r.db.violations[i].ID == id {
				r.db.violations = append(r.db.violations[:i:i], r.db.violations[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (r memViolations) ListBySession(_ context.Context, sessionID uuid.UUID) ([]model.Violation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []model.Violation{}
	for _, v := range r.db.violations {
		if v.SessionID == sessionID {
			out = append(out, v)
		}
	}
	return out, nil
}

// ─── Results ─────────────────────────────────────────────────────────

type memResults struct {
	db *memDB
	tx *memTx
}

func (r memResults) Create(_ context.Context, res *model.Result) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.failResultCreate; err != nil {
		r.db.failResultCreate = nil
		return err
	}
	for _, existing := range r.db.results {
		if existing.SessionID == res.SessionID {
			return fmt.Errorf("results_session_id_key: %w", repository.ErrDuplicate)
		}
	}
	res.CreatedAt = time.Now()
	r.db.results[res.ID] = *res
	id := res.ID
	r.tx.onRollback(func() { delete(r.db.results, id) })
	return nil
}

func (r memResults) GetByID(_ context.Context, id uuid.UUID) (*model.Result, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	res, ok := r.db.results[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &res, nil
}

func (r memResults) filter(keep func(model.Result) bool) []model.Result {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []model.Result{}
	for _, res := range r.db.results {
		if keep(res) {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r memResults) ListByStudent(_ context.Context, studentID int) ([]model.Result, error) {
	return r.filter(func(res model.Result) bool { return res.StudentID == studentID }), nil
}

func (r memResults) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Result, error) {
	return r.filter(func(res model.Result) bool { return res.ExamID == examID }), nil
}

func (r memResults) ListAll(_ context.Context, limit int) ([]model.Result, error) {
	out := r.filter(func(model.Result) bool { return true })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ─── Analytics ───────────────────────────────────────────────────────

type memAnalytics struct{ db *memDB }

func (r memAnalytics) GetTotals(context.Context) (*repository.Totals, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t := &repository.Totals{Exams: len(r.db.exams), Results: len(r.db.results)}
	for _, u := range r.db.users {
		if u.Role == model.RoleStudent {
			t.Students++
		}
	}
	var sum float64
	for _, res := range r.db.results {
		sum += res.Percentage
	}
	if len(r.db.results) > 0 {
		t.AvgPercentage = sum / float64(len(r.db.results))
	}
	return t, nil
}

func (r memAnalytics) GetExamStats(_ context.Context, examID uuid.UUID) (*repository.ExamStats, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s := &repository.ExamStats{}
	var sum float64
	for _, res := range r.db.results {
		if res.ExamID != examID {
			continue
		}
		s.Attempts++
		if res.Passed {
			s.Passed++
		}
		sum += res.Percentage
	}
	if s.Attempts > 0 {
		s.AvgPercentage = sum / float64(s.Attempts)
	}
	return s, nil
}

// ─── Paper cache and publisher ───────────────────────────────────────

// memPaperCache keeps papers per (exam, version) like the Redis cache.
type memPaperCache struct {
	mu       sync.Mutex
	versions map[uuid.UUID]int64
	papers   map[paperSlot][]model.QuestionForStudent
	gets     int
	hits     int
}

type paperSlot struct {
	examID  uuid.UUID
	version int64
}

func newMemPaperCache() *memPaperCache {
	return &memPaperCache{
		versions: map[uuid.UUID]int64{},
		papers:   map[paperSlot][]model.QuestionForStudent{},
	}
}

func (c *memPaperCache) Get(_ context.Context, examID uuid.UUID) ([]model.QuestionForStudent, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	version := c.versions[examID]
	p, ok := c.papers[paperSlot{examID, version}]
	if ok {
		c.hits++
	}
	return p, version, ok, nil
}

func (c *memPaperCache) Set(_ context.Context, examID uuid.UUID, version int64, paper []model.QuestionForStudent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.papers[paperSlot{examID, version}] = paper
	return nil
}

func (c *memPaperCache) Invalidate(_ context.Context, examID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[examID]++
	return nil
}

// has reports whether the current version of the paper is cached.
func (c *memPaperCache) has(examID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.papers[paperSlot{examID, c.versions[examID]}]
	return ok
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []MonitorEvent
}

func (p *recordingPublisher) Publish(_ context.Context, evt MonitorEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
