package service_test

import (
	"context"
	"sync"
	"time"

	"courseoj/internal/catalog/model"
	"courseoj/internal/catalog/repository"
	"courseoj/internal/common/db"
	"courseoj/internal/common/mq"
	"courseoj/internal/judge/executor"
)

// fakeDatabase runs transaction bodies without a real connection.
type fakeDatabase struct {
	txErr error
}

func (d *fakeDatabase) Query(ctx context.Context, query string, args ...any) (db.Rows, error) {
	return nil, nil
}

func (d *fakeDatabase) QueryRow(ctx context.Context, query string, args ...any) db.Row {
	return nil
}

func (d *fakeDatabase) Exec(ctx context.Context, query string, args ...any) (db.Result, error) {
	return nil, nil
}

func (d *fakeDatabase) Transaction(ctx context.Context, fn func(tx db.Transaction) error) error {
	if d.txErr != nil {
		return d.txErr
	}
	return fn(nil)
}

func (d *fakeDatabase) BeginTx(ctx context.Context, opts *db.TxOptions) (db.Transaction, error) {
	return nil, nil
}

func (d *fakeDatabase) Ping(ctx context.Context) error { return nil }
func (d *fakeDatabase) Close() error                   { return nil }
func (d *fakeDatabase) Stats() db.Stats                { return db.Stats{} }

// fakeProblemRepo is an in-memory ProblemRepository.
type fakeProblemRepo struct {
	mu       sync.Mutex
	nextID   int64
	problems map[int64]model.Problem

	searchResult []model.Problem
	searchTotal  int64
	lastQuery    repository.SearchQuery
}

func newFakeProblemRepo() *fakeProblemRepo {
	return &fakeProblemRepo{nextID: 1, problems: make(map[int64]model.Problem)}
}

func (r *fakeProblemRepo) put(problem model.Problem) model.Problem {
	r.mu.Lock()
	defer r.mu.Unlock()
	if problem.ID == 0 {
		problem.ID = r.nextID
		r.nextID++
	} else if problem.ID >= r.nextID {
		r.nextID = problem.ID + 1
	}
	r.problems[problem.ID] = problem
	return problem
}

func (r *fakeProblemRepo) Create(ctx context.Context, tx db.Transaction, problem *model.Problem) (int64, error) {
	stored := r.put(*problem)
	problem.ID = stored.ID
	return stored.ID, nil
}

func (r *fakeProblemRepo) Get(ctx context.Context, tx db.Transaction, problemID int64) (model.Problem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	problem, ok := r.problems[problemID]
	if !ok {
		return model.Problem{}, repository.ErrProblemNotFound
	}
	return problem, nil
}

func (r *fakeProblemRepo) Update(ctx context.Context, tx db.Transaction, problem *model.Problem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.problems[problem.ID]; !ok {
		return repository.ErrProblemNotFound
	}
	r.problems[problem.ID] = *problem
	return nil
}

func (r *fakeProblemRepo) UpdateStatus(ctx context.Context, tx db.Transaction, problemID int64, status model.DevStatus, rejectedMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	problem, ok := r.problems[problemID]
	if !ok {
		return repository.ErrProblemNotFound
	}
	problem.DevStatus = status
	problem.RejectedMessage = rejectedMessage
	r.problems[problemID] = problem
	return nil
}

func (r *fakeProblemRepo) Delete(ctx context.Context, tx db.Transaction, problemID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.problems[problemID]; !ok {
		return repository.ErrProblemNotFound
	}
	delete(r.problems, problemID)
	return nil
}

func (r *fakeProblemRepo) Search(ctx context.Context, query repository.SearchQuery) ([]model.Problem, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastQuery = query
	return r.searchResult, r.searchTotal, nil
}

func (r *fakeProblemRepo) InvalidateCache(ctx context.Context, problemID int64) {}

// fakeTestCaseRepo is an in-memory TestCaseRepository.
type fakeTestCaseRepo struct {
	mu     sync.Mutex
	nextID int64
	cases  map[int64]model.TestCase
}

func newFakeTestCaseRepo() *fakeTestCaseRepo {
	return &fakeTestCaseRepo{nextID: 1, cases: make(map[int64]model.TestCase)}
}

func (r *fakeTestCaseRepo) Create(ctx context.Context, tx db.Transaction, testCase *model.TestCase) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	testCase.ID = r.nextID
	r.nextID++
	r.cases[testCase.ID] = *testCase
	return testCase.ID, nil
}

func (r *fakeTestCaseRepo) Get(ctx context.Context, tx db.Transaction, testCaseID int64) (model.TestCase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	testCase, ok := r.cases[testCaseID]
	if !ok {
		return model.TestCase{}, repository.ErrTestCaseNotFound
	}
	return testCase, nil
}

func (r *fakeTestCaseRepo) Update(ctx context.Context, tx db.Transaction, testCase *model.TestCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cases[testCase.ID]; !ok {
		return repository.ErrTestCaseNotFound
	}
	r.cases[testCase.ID] = *testCase
	return nil
}

func (r *fakeTestCaseRepo) Delete(ctx context.Context, tx db.Transaction, testCaseID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cases[testCaseID]; !ok {
		return repository.ErrTestCaseNotFound
	}
	delete(r.cases, testCaseID)
	return nil
}

func (r *fakeTestCaseRepo) DeleteByProblem(ctx context.Context, tx db.Transaction, problemID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, testCase := range r.cases {
		if testCase.ProblemID == problemID {
			delete(r.cases, id)
		}
	}
	return nil
}

func (r *fakeTestCaseRepo) ListByProblem(ctx context.Context, tx db.Transaction, problemID int64) ([]model.TestCase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []model.TestCase
	for id := int64(1); id < r.nextID; id++ {
		if testCase, ok := r.cases[id]; ok && testCase.ProblemID == problemID {
			result = append(result, testCase)
		}
	}
	return result, nil
}

func (r *fakeTestCaseRepo) CountByProblem(ctx context.Context, tx db.Transaction, problemID int64) (repository.TestCaseCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var counts repository.TestCaseCounts
	for _, testCase := range r.cases {
		if testCase.ProblemID != problemID {
			continue
		}
		if testCase.IsHidden {
			counts.Hidden++
		} else {
			counts.Visible++
		}
	}
	return counts, nil
}

// fakeProgressRepo records progress upserts.
type fakeProgressRepo struct {
	mu       sync.Mutex
	statuses map[int64]map[int64]model.ProgressStatus
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{statuses: make(map[int64]map[int64]model.ProgressStatus)}
}

func (r *fakeProgressRepo) Upsert(ctx context.Context, userID, problemID int64, status model.ProgressStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	byProblem, ok := r.statuses[userID]
	if !ok {
		byProblem = make(map[int64]model.ProgressStatus)
		r.statuses[userID] = byProblem
	}
	if byProblem[problemID] == model.ProgressSolved {
		return nil
	}
	byProblem[problemID] = status
	return nil
}

func (r *fakeProgressRepo) GetStatuses(ctx context.Context, userID int64, problemIDs []int64) (map[int64]model.ProgressStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make(map[int64]model.ProgressStatus)
	for _, problemID := range problemIDs {
		if status, ok := r.statuses[userID][problemID]; ok {
			result[problemID] = status
		}
	}
	return result, nil
}

// scriptedExecutor maps input to a rehearsed sandbox result. Unknown
// inputs echo themselves back as successful output.
type scriptedExecutor struct {
	mu       sync.Mutex
	results  map[string]executor.RunResult
	requests []executor.RunRequest
}

func newScriptedExecutor() *scriptedExecutor {
	return &scriptedExecutor{results: make(map[string]executor.RunResult)}
}

func (e *scriptedExecutor) script(input string, result executor.RunResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results[input] = result
}

func (e *scriptedExecutor) Run(ctx context.Context, req executor.RunRequest) executor.RunResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, req)
	if result, ok := e.results[req.Input]; ok {
		return result
	}
	return executor.RunResult{Output: req.Input, ExitCode: 0, ExitStatus: executor.StatusSuccess, UsedTime: 1}
}

func (e *scriptedExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}

// capturingQueue records published messages.
type capturingQueue struct {
	mu       sync.Mutex
	messages []*mq.Message
	topics   []string
}

func (q *capturingQueue) Publish(ctx context.Context, topic string, message *mq.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.topics = append(q.topics, topic)
	q.messages = append(q.messages, message)
	return nil
}

func (q *capturingQueue) PublishBatch(ctx context.Context, topic string, messages []*mq.Message) error {
	for _, message := range messages {
		if err := q.Publish(ctx, topic, message); err != nil {
			return err
		}
	}
	return nil
}

func (q *capturingQueue) Subscribe(ctx context.Context, topic string, handler mq.HandlerFunc) error {
	return nil
}

func (q *capturingQueue) SubscribeWithOptions(ctx context.Context, topic string, handler mq.HandlerFunc, opts *mq.SubscribeOptions) error {
	return nil
}

func (q *capturingQueue) Start() error                   { return nil }
func (q *capturingQueue) Stop() error                    { return nil }
func (q *capturingQueue) Ping(ctx context.Context) error { return nil }
func (q *capturingQueue) Close() error                   { return nil }

func (q *capturingQueue) published() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// fakeLockCache implements the lock surface used by the reverify consumer.
type fakeLockCache struct {
	mu    sync.Mutex
	locks map[string]bool
}

func newFakeLockCache() *fakeLockCache {
	return &fakeLockCache{locks: make(map[string]bool)}
}

func (c *fakeLockCache) Get(ctx context.Context, key string) (string, error) { return "", nil }
func (c *fakeLockCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return nil
}
func (c *fakeLockCache) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return true, nil
}
func (c *fakeLockCache) Del(ctx context.Context, keys ...string) error          { return nil }
func (c *fakeLockCache) Exists(ctx context.Context, keys ...string) (int64, error) { return 0, nil }
func (c *fakeLockCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}
func (c *fakeLockCache) TTL(ctx context.Context, key string) (time.Duration, error) { return 0, nil }
func (c *fakeLockCache) Incr(ctx context.Context, key string) (int64, error)        { return 0, nil }

func (c *fakeLockCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locks[key] {
		return false, nil
	}
	c.locks[key] = true
	return true, nil
}

func (c *fakeLockCache) Unlock(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, key)
	return nil
}

func (c *fakeLockCache) ExtendLock(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}

func (c *fakeLockCache) Ping(ctx context.Context) error { return nil }
func (c *fakeLockCache) Close() error                   { return nil }
