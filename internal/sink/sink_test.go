package sink

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/address-formatter/app/config"
	"github.com/address-formatter/app/models"
	"github.com/address-formatter/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap/zaptest"
)

func sampleAddress(id string) *models.StructuredAddress {
	return &models.StructuredAddress{
		ID:        id,
		Title:     "Herr",
		Name:      "Muster Hans",
		Lastname:  "Muster",
		Firstname: "Hans",
		Address:   models.Street{Street: "Bahnhofstrasse", HouseNumber: "12"},
		Postal:    models.PostalCode{Code: 8001},
		City:      "Zürich",
		Country:   "CH",
	}
}

type failingSink struct{ err error }

func (f failingSink) Write(context.Context, *models.StructuredAddress) error { return f.err }
func (f failingSink) Close() error                                          { return f.err }

func TestMulti(t *testing.T) {
	a, b := NewMemory(), NewMemory()
	m := Multi{a, b}

	require.NoError(t, m.Write(context.Background(), sampleAddress("1")))
	assert.Len(t, a.Written(), 1)
	assert.Len(t, b.Written(), 1)

	require.NoError(t, m.Close())
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())

	boom := errors.New("boom")
	c := NewMemory()
	m = Multi{failingSink{err: boom}, c}
	assert.ErrorIs(t, m.Write(context.Background(), sampleAddress("2")), boom)
	assert.Empty(t, c.Written())
	assert.ErrorIs(t, m.Close(), boom)
	assert.True(t, c.Closed())
}

func TestMemoryConcurrentWrites(t *testing.T) {
	mem := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mem.Write(context.Background(), sampleAddress("x"))
		}()
	}
	wg.Wait()
	assert.Len(t, mem.Written(), 50)
}

func TestApplyColumns(t *testing.T) {
	row := sampleAddress("1").ToRow()
	row["iban"] = nil

	out := ApplyColumns(row, map[string]config.ColumnConfig{
		models.ColTitle:   {Name: "salutation"},
		models.ColCountry: {Value: "LI"},
		"iban":            {Default: "unknown"},
		models.ColCompl1:  {Name: "-"},
	})

	assert.Equal(t, "Herr", out["salutation"])
	assert.NotContains(t, out, models.ColTitle)
	assert.Equal(t, "LI", out[models.ColCountry])
	assert.Equal(t, "unknown", out["iban"])
	assert.NotContains(t, out, models.ColCompl1)
	assert.Equal(t, "Bahnhofstrasse", out[models.ColStreet])
}

func TestBuildInsert(t *testing.T) {
	stmt, args := BuildInsert("public.address", map[string]interface{}{
		"old_id": "1",
		"city":   "Bern",
	})
	assert.Equal(t, `INSERT INTO "public"."address" ("city", "old_id") VALUES ($1, $2)`, stmt)
	assert.Equal(t, []interface{}{"Bern", "1"}, args)
}

func TestBuildLinkUpdate(t *testing.T) {
	assert.Empty(t, BuildLinkUpdate(config.LinkConfig{}, "address", "id", "old_id"))

	stmt := BuildLinkUpdate(config.LinkConfig{
		Table:      "payment",
		RefColumn:  "address_id",
		OrigColumn: "legacy_address_id",
	}, "address", "id", "old_id")
	assert.Equal(t,
		`UPDATE "payment" SET "address_id" = (SELECT d."id" FROM "address" d WHERE d."old_id" = $1 ORDER BY d."id" DESC LIMIT 1) WHERE "legacy_address_id"::text = $1`,
		stmt)
}

func TestBuildCreateTable(t *testing.T) {
	ddl := BuildCreateTable("address", "id", map[string]config.ColumnConfig{
		models.ColTitle:  {Name: "salutation"},
		models.ColCompl2: {Name: "-"},
	}, []string{"iban"})

	assert.Contains(t, ddl, `CREATE TABLE IF NOT EXISTS "address"`)
	assert.Contains(t, ddl, `"id" BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY`)
	assert.Contains(t, ddl, `"salutation" TEXT`)
	assert.Contains(t, ddl, `"postal_code" INTEGER NOT NULL DEFAULT 0`)
	assert.Contains(t, ddl, `"country" VARCHAR(2) NOT NULL`)
	assert.Contains(t, ddl, `"iban" TEXT`)
	assert.NotContains(t, ddl, `"compl2"`)
	assert.NotContains(t, ddl, `"title"`)
}

func TestKafkaSink(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got models.StructuredAddress
		if err := got.UnmarshalJSON(val); err != nil {
			return err
		}
		if got.ID != "42" || got.City != "Zürich" {
			return errors.New("unexpected payload")
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	ks := NewKafkaSinkFromProducer(producer, "addresses", zaptest.NewLogger(t))
	require.NoError(t, ks.Write(context.Background(), sampleAddress("42")))

	err := ks.Write(context.Background(), sampleAddress("43"))
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)

	require.NoError(t, ks.Close())
}

func TestKafkaSinkCancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	ks := NewKafkaSinkFromProducer(producer, "addresses", zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ks.Write(ctx, sampleAddress("1")), context.Canceled)
	require.NoError(t, ks.Close())
}

type fakeIndexer struct {
	mu      sync.Mutex
	batches [][]search.AddressDocument
}

func (f *fakeIndexer) AddDocuments(_ context.Context, docs []search.AddressDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, docs)
	return nil
}

func TestIndexSinkBatches(t *testing.T) {
	idx := &fakeIndexer{}
	s := NewIndexSink(idx, 2)

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, s.Write(context.Background(), sampleAddress(id)))
	}
	require.Len(t, idx.batches, 1)
	assert.Len(t, idx.batches[0], 2)

	require.NoError(t, s.Close())
	require.Len(t, idx.batches, 2)
	assert.Equal(t, "3", idx.batches[1][0].OldID)

	require.NoError(t, s.Flush(context.Background()))
	assert.Len(t, idx.batches, 2)
}

func TestMongoSink(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("upsert", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		s := NewMongoSink(mt.DB, mt.Coll.Name(), "address_reviews", zaptest.NewLogger(t))
		require.NoError(t, s.Write(context.Background(), sampleAddress("1")))
	})

	mt.Run("write error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 11000, Message: "duplicate key"}))
		s := NewMongoSink(mt.DB, mt.Coll.Name(), "address_reviews", zaptest.NewLogger(t))
		err := s.Write(context.Background(), sampleAddress("1"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "upsert address 1")
	})

	mt.Run("enqueue review", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		s := NewMongoSink(mt.DB, mt.Coll.Name(), "address_reviews", zaptest.NewLogger(t))
		review := models.NewAddressReview("run", []string{"x"}, *sampleAddress("1"), nil, []string{models.ReviewReasonDroppedLines})
		require.NoError(t, s.Enqueue(context.Background(), review))
	})

	mt.Run("save report", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		s := NewMongoSink(mt.DB, mt.Coll.Name(), "address_reviews", zaptest.NewLogger(t))
		require.NoError(t, s.SaveReport(context.Background(), &models.MigrationReport{RunID: "run_1", Read: 3}))
	})

	mt.Run("pending reviews", func(mt *mtest.T) {
		ns := mt.DB.Name() + ".address_reviews"
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, bson.D{
				{Key: "old_id", Value: "7"},
				{Key: "status", Value: models.ReviewStatusPending},
				{Key: "reasons", Value: bson.A{models.ReviewReasonNoPostalCode}},
			}),
			mtest.CreateCursorResponse(0, ns, mtest.NextBatch),
		)
		s := NewMongoSink(mt.DB, mt.Coll.Name(), "address_reviews", zaptest.NewLogger(t))
		reviews, err := s.PendingReviews(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, reviews, 1)
		assert.Equal(t, "7", reviews[0].OldID)
		assert.True(t, reviews[0].IsPending())
	})
}
