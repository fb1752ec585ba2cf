package store

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/amaumene/towatch/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func poster(s string) *string { return &s }

func newItem(userID, mediaID string) *models.ToWatchItem {
	mediaType, id, err := models.ParseMediaID(mediaID)
	if err != nil {
		panic(err)
	}
	return &models.ToWatchItem{
		UserID:  userID,
		MediaID: mediaID,
		Type:    mediaType,
		Title:   "Title " + mediaID,
		Poster:  poster("https://image.tmdb.org/t/p/w500/x.jpg"),
		Year:    2020,
		TMDBID:  id,
	}
}

func mediaIDs(items []models.ToWatchItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.MediaID)
	}
	sort.Strings(ids)
	return ids
}

// runRepositoryContract exercises the behaviour every backend must share
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()

	t.Run("add then list", func(t *testing.T) {
		repo := newRepo(t)
		item := newItem("u1", "movie:550")
		require.NoError(t, repo.Add(ctx, item))
		assert.False(t, item.CreatedAt.IsZero(), "CreatedAt should be assigned")

		items, err := repo.List(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "movie:550", items[0].MediaID)
		assert.Equal(t, models.MediaTypeMovie, items[0].Type)
		assert.Equal(t, 550, items[0].TMDBID)
		require.NotNil(t, items[0].Poster)
	})

	t.Run("duplicate add conflicts", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Add(ctx, newItem("u1", "movie:550")))

		err := repo.Add(ctx, newItem("u1", "movie:550"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConflict))

		items, err := repo.List(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("same media for different users", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Add(ctx, newItem("u1", "tv:1399")))
		require.NoError(t, repo.Add(ctx, newItem("u2", "tv:1399")))

		items, err := repo.List(ctx, "u2")
		require.NoError(t, err)
		assert.Equal(t, []string{"tv:1399"}, mediaIDs(items))
	})

	t.Run("list of unknown user is empty not nil", func(t *testing.T) {
		repo := newRepo(t)
		items, err := repo.List(ctx, "nobody")
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	})

	t.Run("null poster round trips", func(t *testing.T) {
		repo := newRepo(t)
		item := newItem("u1", "movie:1")
		item.Poster = nil
		require.NoError(t, repo.Add(ctx, item))

		items, err := repo.List(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Nil(t, items[0].Poster)
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Add(ctx, newItem("u1", "movie:550")))
		require.NoError(t, repo.Add(ctx, newItem("u1", "movie:551")))

		require.NoError(t, repo.Remove(ctx, "u1", "movie:550"))
		require.NoError(t, repo.Remove(ctx, "u1", "movie:550"))
		require.NoError(t, repo.Remove(ctx, "u1", "movie:999"))

		items, err := repo.List(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"movie:551"}, mediaIDs(items))
	})

	t.Run("add after remove succeeds", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Add(ctx, newItem("u1", "movie:550")))
		require.NoError(t, repo.Remove(ctx, "u1", "movie:550"))
		require.NoError(t, repo.Add(ctx, newItem("u1", "movie:550")))
	})

	t.Run("concurrent duplicate adds yield one success", func(t *testing.T) {
		repo := newRepo(t)

		const workers = 8
		var wg sync.WaitGroup
		results := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- repo.Add(ctx, newItem("u1", "tv:42"))
			}()
		}
		wg.Wait()
		close(results)

		successes, conflicts := 0, 0
		for err := range results {
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, successes)
		assert.Equal(t, workers-1, conflicts)
	})
}

func TestBoltRepository(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) Repository {
		repo, err := NewBoltRepository(filepath.Join(t.TempDir(), "towatch.db"))
		require.NoError(t, err)
		t.Cleanup(func() { repo.Close() })
		return repo
	})
}

func TestDynamoRepository(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) Repository {
		repo, err := NewDynamoRepository(newFakeDynamo(), "user-media", testLogger())
		require.NoError(t, err)
		return repo
	})
}

func TestMissingStoreName(t *testing.T) {
	_, err := NewDynamoRepository(newFakeDynamo(), "", testLogger())
	assert.ErrorIs(t, err, ErrMissingStoreName)

	_, err = NewBoltRepository("")
	assert.ErrorIs(t, err, ErrMissingStoreName)
}

func TestDynamoRepositorySendsConditionalPut(t *testing.T) {
	fake := newFakeDynamo()
	repo, err := NewDynamoRepository(fake, "user-media", testLogger())
	require.NoError(t, err)

	require.NoError(t, repo.Add(context.Background(), newItem("u1", "movie:550")))

	require.NotNil(t, fake.lastPut)
	assert.Equal(t, "user-media", aws.ToString(fake.lastPut.TableName))
	assert.Equal(t, "attribute_not_exists(#userId) AND attribute_not_exists(#mediaId)", aws.ToString(fake.lastPut.ConditionExpression))
	assert.Equal(t, "userId", fake.lastPut.ExpressionAttributeNames["#userId"])
}

func TestDynamoRepositoryListFollowsPages(t *testing.T) {
	fake := newFakeDynamo()
	fake.pageSize = 2
	repo, err := NewDynamoRepository(fake, "user-media", testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	for _, id := range []string{"movie:1", "movie:2", "movie:3", "tv:4", "tv:5"} {
		require.NoError(t, repo.Add(ctx, newItem("u1", id)))
	}

	items, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"movie:1", "movie:2", "movie:3", "tv:4", "tv:5"}, mediaIDs(items))
	assert.Equal(t, 3, fake.queryCalls)
}

func TestDynamoRepositoryWrapsBackendErrors(t *testing.T) {
	fake := newFakeDynamo()
	fake.failWith = errors.New("throttled")
	repo, err := NewDynamoRepository(fake, "user-media", testLogger())
	require.NoError(t, err)

	err = repo.Add(context.Background(), newItem("u1", "movie:550"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConflict))

	_, err = repo.List(context.Background(), "u1")
	assert.Error(t, err)
}

func TestEnsureTable(t *testing.T) {
	fake := newFakeDynamo()
	repo, err := NewDynamoRepository(fake, "user-media", testLogger())
	require.NoError(t, err)

	require.NoError(t, repo.EnsureTable(context.Background()))
	require.NotNil(t, fake.created)
	assert.Equal(t, types.BillingModePayPerRequest, fake.created.BillingMode)
	require.Len(t, fake.created.KeySchema, 2)
	assert.Equal(t, "userId", aws.ToString(fake.created.KeySchema[0].AttributeName))
	assert.Equal(t, types.KeyTypeHash, fake.created.KeySchema[0].KeyType)
	assert.Equal(t, "mediaId", aws.ToString(fake.created.KeySchema[1].AttributeName))
	assert.Equal(t, types.KeyTypeRange, fake.created.KeySchema[1].KeyType)

	// Second call hits ResourceInUseException and is not an error
	require.NoError(t, repo.EnsureTable(context.Background()))
}

// fakeDynamo is an in-memory DynamoAPI honouring the conditional put
type fakeDynamo struct {
	mu         sync.Mutex
	items      map[string]map[string]types.AttributeValue
	pageSize   int
	queryCalls int
	lastPut    *dynamodb.PutItemInput
	created    *dynamodb.CreateTableInput
	failWith   error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func stringAttr(av map[string]types.AttributeValue, name string) string {
	if s, ok := av[name].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func fakeKey(userID, mediaID string) string {
	return userID + "\x00" + mediaID
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.lastPut = in

	key := fakeKey(stringAttr(in.Item, "userId"), stringAttr(in.Item, "mediaId"))
	if _, exists := f.items[key]; exists && in.ConditionExpression != nil {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.queryCalls++

	userID := stringAttr(in.ExpressionAttributeValues, ":userId")
	var matches []map[string]types.AttributeValue
	for _, av := range f.items {
		if stringAttr(av, "userId") == userID {
			matches = append(matches, av)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return stringAttr(matches[i], "mediaId") < stringAttr(matches[j], "mediaId")
	})

	if in.ExclusiveStartKey != nil {
		after := stringAttr(in.ExclusiveStartKey, "mediaId")
		idx := sort.Search(len(matches), func(i int) bool {
			return stringAttr(matches[i], "mediaId") > after
		})
		matches = matches[idx:]
	}

	out := &dynamodb.QueryOutput{}
	if f.pageSize > 0 && len(matches) > f.pageSize {
		matches = matches[:f.pageSize]
		last := matches[len(matches)-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"userId":  last["userId"],
			"mediaId": last["mediaId"],
		}
	}
	out.Items = matches
	out.Count = int32(len(matches))
	return out, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	delete(f.items, fakeKey(stringAttr(in.Key, "userId"), stringAttr(in.Key, "mediaId")))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.created != nil {
		return nil, &types.ResourceInUseException{Message: aws.String("Table already exists")}
	}
	f.created = in
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeDynamo) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{
			TableName:   in.TableName,
			TableStatus: types.TableStatusActive,
		},
	}, nil
}
