package elastic_search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZilDuck/nft-marketplace/internal/config"
	"github.com/ZilDuck/nft-marketplace/internal/entity"
	"github.com/aws/aws-sdk-go/aws/credentials"
	v4 "github.com/aws/aws-sdk-go/aws/signer/v4"
	"github.com/olivere/elastic/v7"
	"github.com/patrickmn/go-cache"
	"github.com/sha1sum/aws_signing_client"
	"go.uber.org/zap"
)

type Index interface {
	InstallMappings(ctx context.Context) error

	AddIndexRequest(index string, entity entity.Entity)
	HasRequest(entity entity.Entity) bool
	GetRequests() []Request
	ClearRequests()

	BatchPersist(ctx context.Context) (bool, error)
	Persist(ctx context.Context) (int, error)
}

type index struct {
	client           bulkClient
	cache            *cache.Cache
	prefix           string
	refresh          string
	mappingDir       string
	bulkPersistCount int
}

// bulkClient is the part of the elastic client the archive uses.
type bulkClient interface {
	IndexExists(indices ...string) *elastic.IndicesExistsService
	CreateIndex(name string) *elastic.IndicesCreateService
	Bulk() *elastic.BulkService
}

type Request struct {
	Index  string
	Entity entity.Entity
}

var ErrPersistFailed = errors.New("elastic: failed to persist requests")

const persistAttempts = 3

func New(cfg config.ElasticSearchConfig, aws config.AwsConfig, prefix string) (Index, error) {
	client, err := newClient(cfg, aws)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("ElasticCache: Failed to create client")
		return nil, err
	}

	return newIndex(client, cfg, prefix), nil
}

func newIndex(client bulkClient, cfg config.ElasticSearchConfig, prefix string) *index {
	bulkPersistCount := cfg.BulkPersistCount
	if bulkPersistCount <= 0 {
		bulkPersistCount = 300
	}

	return &index{
		client:           client,
		cache:            cache.New(cache.NoExpiration, 10*time.Minute),
		prefix:           prefix,
		refresh:          cfg.Refresh,
		mappingDir:       cfg.MappingDir,
		bulkPersistCount: bulkPersistCount,
	}
}

func newClient(cfg config.ElasticSearchConfig, aws config.AwsConfig) (*elastic.Client, error) {
	opts := []elastic.ClientOptionFunc{
		elastic.SetURL(strings.Join(cfg.Hosts, ",")),
		elastic.SetSniff(cfg.Sniff),
		elastic.SetHealthcheck(cfg.HealthCheck),
	}

	if cfg.Debug {
		opts = append(opts, elastic.SetTraceLog(ElasticLogger{}))
	}

	if cfg.Aws {
		creds := credentials.NewStaticCredentials(aws.AccessKey, aws.SecretKey, aws.Token)
		awsClient, err := aws_signing_client.New(v4.NewSigner(creds), nil, "es", aws.Region)
		if err != nil {
			return nil, err
		}

		opts = append(opts, elastic.SetHttpClient(awsClient))
		opts = append(opts, elastic.SetScheme("https"))
		return elastic.NewClient(opts...)
	}

	if cfg.Username != "" {
		opts = append(opts, elastic.SetBasicAuth(cfg.Username, cfg.Password))
	}

	return elastic.NewClient(opts...)
}

// InstallMappings creates one index per mapping file, named after the file.
func (i *index) InstallMappings(ctx context.Context) error {
	zap.L().With(zap.String("dir", i.mappingDir)).Info("ElasticCache: Install Mappings")

	files, err := os.ReadDir(i.mappingDir)
	if err != nil {
		zap.L().With(zap.Error(err)).Error("ElasticCache: Elastic mappings directory error")
		return err
	}

	for _, f := range files {
		if f.IsDir() {
			continue
		}

		b, err := os.ReadFile(filepath.Join(i.mappingDir, f.Name()))
		if err != nil {
			zap.L().With(zap.Error(err), zap.String("file", f.Name())).Error("ElasticCache: Elastic mappings file error")
			return err
		}

		name := Indices(strings.TrimSuffix(f.Name(), filepath.Ext(f.Name()))).Get(i.prefix)
		if err = i.createIndex(ctx, name, b); err != nil {
			zap.L().With(zap.Error(err), zap.String("index", name)).Error("ElasticCache: Failed to create index")
			return fmt.Errorf("create index %s: %w", name, err)
		}
	}

	return nil
}

func (i *index) createIndex(ctx context.Context, name string, mapping []byte) error {
	exists, err := i.client.IndexExists(name).Do(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	createIndex, err := i.client.CreateIndex(name).BodyString(string(mapping)).Do(ctx)
	if err != nil {
		return err
	}

	if createIndex.Acknowledged {
		zap.L().With(zap.String("index", name)).Info("ElasticCache: Created index")
	}

	return nil
}

func (i *index) AddIndexRequest(index string, entity entity.Entity) {
	zap.L().With(
		zap.String("index", index),
		zap.String("slug", entity.Slug()),
	).Debug("ElasticCache: AddIndexRequest")

	i.cache.Set(entity.Slug(), Request{index, entity}, cache.NoExpiration)
}

func (i *index) HasRequest(entity entity.Entity) bool {
	_, found := i.cache.Get(entity.Slug())

	return found
}

func (i *index) GetRequests() []Request {
	requests := make([]Request, 0)

	for _, item := range i.cache.Items() {
		requests = append(requests, item.Object.(Request))
	}

	return requests
}

func (i *index) ClearRequests() {
	i.cache.Flush()
}

// BatchPersist persists only once a full bulk is buffered.
func (i *index) BatchPersist(ctx context.Context) (bool, error) {
	if i.cache.ItemCount() < i.bulkPersistCount {
		return false, nil
	}

	actions := i.cache.ItemCount()
	start := time.Now()
	if _, err := i.Persist(ctx); err != nil {
		return false, err
	}

	zap.L().With(
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("actions", actions),
	).Info("ElasticCache: Persisting data")

	return true, nil
}

// Persist writes every buffered request. Requests that fail stay buffered for
// the next call.
func (i *index) Persist(ctx context.Context) (int, error) {
	persisted := 0
	bulk := i.client.Bulk()
	for _, r := range i.GetRequests() {
		bulk.Add(elastic.NewBulkIndexRequest().Index(r.Index).Id(r.Entity.Slug()).Doc(r.Entity))

		if bulk.NumberOfActions() >= i.bulkPersistCount {
			n, err := i.persist(ctx, bulk)
			persisted += n
			if err != nil {
				return persisted, err
			}
			bulk = i.client.Bulk()
		}
	}

	if bulk.NumberOfActions() != 0 {
		n, err := i.persist(ctx, bulk)
		persisted += n
		if err != nil {
			return persisted, err
		}
	}

	return persisted, nil
}

func (i *index) persist(ctx context.Context, bulk *elastic.BulkService) (int, error) {
	actions := bulk.NumberOfActions()
	zap.L().With(zap.Int("actions", actions)).Debug("ElasticCache: Persisting actions")

	if i.refresh != "" {
		bulk = bulk.Refresh(i.refresh)
	}

	var response *elastic.BulkResponse
	var err error
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		response, err = bulk.Do(ctx)
		if err == nil {
			break
		}

		wait := time.Duration(attempt) * time.Second
		if elastic.IsStatusCode(err, 429) {
			zap.L().With(zap.Error(err)).Warn("ElasticCache: 429 (Too Many Requests)")
			wait = 5 * time.Second
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(wait):
		}
	}
	if err != nil {
		zap.L().With(zap.Error(err)).Error("ElasticCache: Failed to persist requests")
		return 0, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	failed := make(map[string]bool)
	for _, item := range response.Failed() {
		zap.L().With(
			zap.Any("error", item.Error),
			zap.String("index", item.Index),
			zap.String("id", item.Id),
		).Error("ElasticCache: Failed to persist request")
		failed[item.Id] = true
	}

	for _, item := range response.Succeeded() {
		i.cache.Delete(item.Id)
	}

	if len(failed) != 0 {
		return actions - len(failed), fmt.Errorf("%w: %d of %d actions", ErrPersistFailed, len(failed), actions)
	}

	zap.L().Debug("ElasticCache: Flushing ES cache")

	return actions, nil
}
