package lending

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmarrero/shelfstack-backend/internal/books"
	"github.com/dmarrero/shelfstack-backend/internal/members"
	"github.com/dmarrero/shelfstack-backend/pkg/config"
	"github.com/dmarrero/shelfstack-backend/pkg/db"
	pkgerrors "github.com/dmarrero/shelfstack-backend/pkg/errors"
	"github.com/dmarrero/shelfstack-backend/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Engine tests run the full service stack (real repositories, real WithTx)
// against an in-memory sqlite schema.
func newEngine(t *testing.T, policy config.LendingConfig) (Service, func(string) int64, func(string) int64) {
	t.Helper()

	conn := setupLendingTestDB(t)
	client := db.NewFromConn(conn)

	svc, err := NewService(
		NewRepository(conn),
		members.NewRepository(conn),
		books.NewRepository(conn),
		client,
		policy,
	)
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = func() time.Time { return testToday }

	addMember := func(email string) int64 {
		return seedMember(t, conn, email).ID
	}
	addBook := func(title string) int64 {
		return seedBook(t, conn, title).ID
	}
	return svc, addMember, addBook
}

func TestEngine_BorrowReturnCycle(t *testing.T) {
	svc, addMember, addBook := newEngine(t, defaultPolicy())
	ctx := context.Background()

	memberID := addMember("cycle@example.com")
	bookID := addBook("Dune")

	checkout, err := svc.Checkout(ctx, CheckoutInput{MemberID: memberID, BookID: bookID})
	require.NoError(t, err)
	assert.True(t, checkout.Open)

	availability, err := svc.Availability(ctx, bookID)
	require.NoError(t, err)
	assert.False(t, availability.Available)
	require.NotNil(t, availability.BorrowingID)
	assert.Equal(t, checkout.ID, *availability.BorrowingID)

	_, err = svc.Checkout(ctx, CheckoutInput{MemberID: memberID, BookID: bookID})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUnavailable, typed.Code())

	returned, err := svc.Return(ctx, checkout.ID, nil)
	require.NoError(t, err)
	assert.False(t, returned.Open)

	availability, err = svc.Availability(ctx, bookID)
	require.NoError(t, err)
	assert.True(t, availability.Available)

	_, err = svc.Return(ctx, checkout.ID, nil)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	again, err := svc.Checkout(ctx, CheckoutInput{MemberID: memberID, BookID: bookID})
	require.NoError(t, err)
	assert.NotEqual(t, checkout.ID, again.ID)
}

func TestEngine_CheckoutUnknownReferences(t *testing.T) {
	svc, addMember, addBook := newEngine(t, defaultPolicy())
	ctx := context.Background()

	memberID := addMember("refs@example.com")
	bookID := addBook("Dune")

	_, err := svc.Checkout(ctx, CheckoutInput{MemberID: memberID + 100, BookID: bookID})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())

	_, err = svc.Checkout(ctx, CheckoutInput{MemberID: memberID, BookID: bookID + 100})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

// Races N goroutines on one copy. Sqlite permits a single writer, so the pool
// is capped at one connection to queue the transactions instead of failing
// with SQLITE_BUSY; each checkout still runs its full read-then-insert
// sequence against whatever state the previous one committed. The
// unmediated two-writer interleaving is the partial index's job, covered by
// TestRepository_OpenBookIndexAllowsOneOpenLoan and the violation-mapping
// service test.
func TestEngine_ParallelCheckoutsSingleWinner(t *testing.T) {
	conn := setupLendingTestDB(t)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	svc, err := NewService(
		NewRepository(conn),
		members.NewRepository(conn),
		books.NewRepository(conn),
		db.NewFromConn(conn),
		defaultPolicy(),
	)
	require.NoError(t, err)
	svc.(*service).now = func() time.Time { return testToday }

	bookID := seedBook(t, conn, "Dune").ID
	const workers = 8
	memberIDs := make([]int64, workers)
	for i := range memberIDs {
		memberIDs[i] = seedMember(t, conn, fmt.Sprintf("racer%d@example.com", i)).ID
	}

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for _, memberID := range memberIDs {
		wg.Add(1)
		go func(memberID int64) {
			defer wg.Done()
			_, err := svc.Checkout(context.Background(), CheckoutInput{MemberID: memberID, BookID: bookID})
			results <- err
		}(memberID)
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeUnavailable, typed.Code())
		losses++
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, losses)

	availability, err := svc.Availability(context.Background(), bookID)
	require.NoError(t, err)
	assert.False(t, availability.Available)
}

func TestEngine_UpdateRejectionLeavesRecordUnchanged(t *testing.T) {
	svc, addMember, addBook := newEngine(t, defaultPolicy())
	ctx := context.Background()

	memberID := addMember("unchanged@example.com")
	bookID := addBook("Dune")

	checkout, err := svc.Checkout(ctx, CheckoutInput{MemberID: memberID, BookID: bookID})
	require.NoError(t, err)

	early := testToday.AddDate(0, 0, -30)
	_, err = svc.Update(ctx, checkout.ID, UpdateBorrowingInput{
		MemberID:   memberID,
		BookID:     bookID,
		BorrowDate: testToday,
		ReturnDate: closedOn(early),
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	reloaded, err := svc.GetByID(ctx, checkout.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Open)
	assert.Equal(t, checkout.BorrowDate, reloaded.BorrowDate)
}

func TestEngine_MaxOpenLoansCeiling(t *testing.T) {
	policy := defaultPolicy()
	policy.MaxOpenLoans = 1
	svc, addMember, addBook := newEngine(t, policy)
	ctx := context.Background()

	memberID := addMember("ceiling@example.com")
	first := addBook("Dune")
	second := addBook("Hyperion")

	_, err := svc.Checkout(ctx, CheckoutInput{MemberID: memberID, BookID: first})
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, CheckoutInput{MemberID: memberID, BookID: second})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func closedOn(date time.Time) types.NullableDate {
	return types.NullableDate{Valid: true, Value: &date}
}
