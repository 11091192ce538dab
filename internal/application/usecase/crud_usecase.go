package usecase

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mia-platform/crud-service-sub002/internal/application/dto"
	"github.com/mia-platform/crud-service-sub002/internal/crud"
	"github.com/mia-platform/crud-service-sub002/internal/domain/definition"
	"github.com/mia-platform/crud-service-sub002/internal/infrastructure/messaging/kafka"
	"github.com/mia-platform/crud-service-sub002/internal/infrastructure/persistence/mongodb"
	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/metrics"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/tracing"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/vault"
)

// CrudUseCase는 등록된 모든 컬렉션에 대한 CRUD 연산을 조율합니다.
// 질의/프로젝션 해석, ACL 적용, 상태 필터, 필드 암복호화, 변경 이벤트
// 발행이 모두 이 계층에서 일어납니다.
type CrudUseCase struct {
	registry  *definition.Registry
	repo      *mongodb.Repository
	cipher    *vault.FieldCipher
	publisher *kafka.ChangePublisher
	metrics   *metrics.Metrics
	batchSize int

	// 엔드포인트별로 시작 시점에 구축되는 캐스터와 스토리지 이름.
	// 정의 결함은 요청 시점이 아니라 여기서 실패합니다.
	casters map[string]*crud.DefaultCaster
	storage map[string]string
}

// NewCrudUseCase는 새로운 CrudUseCase를 생성합니다
func NewCrudUseCase(
	registry *definition.Registry,
	repo *mongodb.Repository,
	cipher *vault.FieldCipher,
	publisher *kafka.ChangePublisher,
	importBatchSize int,
) (*CrudUseCase, error) {
	casters := make(map[string]*crud.DefaultCaster)
	storage := make(map[string]string)

	for _, endpoint := range registry.Endpoints() {
		coll, err := registry.Get(endpoint)
		if err != nil {
			return nil, err
		}

		caster, err := crud.NewCaster(coll)
		if err != nil {
			return nil, err
		}
		casters[endpoint] = caster

		storage[endpoint] = coll.Name
		if coll.IsView() {
			if source, err := registry.Get(coll.Source); err == nil {
				storage[endpoint] = source.Name
			}
		}
	}

	return &CrudUseCase{
		registry:  registry,
		repo:      repo,
		cipher:    cipher,
		publisher: publisher,
		metrics:   metrics.GetMetrics(),
		batchSize: importBatchSize,
		casters:   casters,
		storage:   storage,
	}, nil
}

// EnsureIndexes는 모든 컬렉션의 정의된 인덱스를 생성합니다
func (uc *CrudUseCase) EnsureIndexes(ctx context.Context) error {
	for _, endpoint := range uc.registry.Endpoints() {
		coll, err := uc.registry.Get(endpoint)
		if err != nil {
			return err
		}
		if coll.IsView() {
			continue
		}
		if err := uc.repo.EnsureIndexes(ctx, coll.Name, coll.Indexes); err != nil {
			return err
		}
	}
	return nil
}

// resolve는 엔드포인트 이름으로 정의와 캐스터, 스토리지 이름을 찾습니다
func (uc *CrudUseCase) resolve(endpoint string) (*definition.Collection, *crud.DefaultCaster, string, error) {
	coll, err := uc.registry.Get(endpoint)
	if err != nil {
		return nil, nil, "", err
	}
	return coll, uc.casters[endpoint], uc.storage[endpoint], nil
}

// buildFilter는 클라이언트 질의, 자유 형식 파라미터, ACL 행 필터, 상태
// 필터를 하나의 필터 문서로 합성합니다
func (uc *CrudUseCase) buildFilter(coll *definition.Collection, caster *crud.DefaultCaster, params dto.ListParams, acl dto.AccessControl) (bson.M, error) {
	filter, err := crud.ResolveQuery(caster, params.Query, acl.Rows, params.OtherParams, false)
	if err != nil {
		return nil, err
	}

	states := params.States
	if len(states) == 0 {
		states = []string{definition.StatePublic}
	}
	for _, state := range states {
		if !definition.IsValidState(state) {
			return nil, apperrors.Newf(apperrors.ErrCodeBadRequest, "invalid state %q", state)
		}
	}

	var stateClause bson.M
	if len(states) == 1 {
		stateClause = bson.M{definition.StateField: states[0]}
	} else {
		stateClause = bson.M{definition.StateField: bson.M{"$in": states}}
	}

	return combineFilters(filter, stateClause), nil
}

func combineFilters(a, b bson.M) bson.M {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	return bson.M{"$and": []bson.M{a, b}}
}

// parseSort는 "-field,other" 형태의 정렬 파라미터를 해석합니다
func parseSort(s string) (bson.D, error) {
	if s == "" {
		return nil, nil
	}

	var sort bson.D
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		order := 1
		if strings.HasPrefix(part, "-") {
			order = -1
			part = part[1:]
		}
		if part == "" {
			return nil, apperrors.New(apperrors.ErrCodeBadRequest, "invalid sort parameter")
		}
		sort = append(sort, bson.E{Key: part, Value: order})
	}
	return sort, nil
}

// List는 필터에 맞는 문서 목록을 반환합니다
func (uc *CrudUseCase) List(ctx context.Context, endpoint string, params dto.ListParams, acl dto.AccessControl) ([]bson.M, error) {
	ctx, span := tracing.StartSpan(ctx, "CrudUseCase.List")
	defer span.End()
	tracing.SetAttributes(ctx, attribute.String("endpoint", endpoint))

	coll, caster, storage, err := uc.resolve(endpoint)
	if err != nil {
		return nil, err
	}

	filter, err := uc.buildFilter(coll, caster, params, acl)
	if err != nil {
		return nil, err
	}
	projection, err := crud.ResolveProjection(ctx, params.Projection, acl.ReadColumns, coll.FieldNames(), params.RawProjection)
	if err != nil {
		return nil, err
	}
	sort, err := parseSort(params.Sort)
	if err != nil {
		return nil, err
	}

	var documents []bson.M
	if coll.IsView() && len(coll.Lookups) > 0 {
		pipeline := uc.buildViewPipeline(coll, filter, projection, sort, params.Limit, params.Skip)
		documents, err = uc.repo.Aggregate(ctx, storage, pipeline)
	} else {
		documents, err = uc.repo.FindAll(ctx, storage, filter, mongodb.FindOptions{
			Projection: projection,
			Sort:       sort,
			Limit:      params.Limit,
			Skip:       params.Skip,
		})
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	for _, doc := range documents {
		if err := uc.cipher.DecryptDocument(ctx, coll, doc); err != nil {
			tracing.RecordError(ctx, err)
			return nil, err
		}
	}

	logger.Debug(ctx, "documents listed",
		logger.Collection(endpoint),
		logger.Count(len(documents)),
	)
	return documents, nil
}

// Count는 필터에 맞는 문서 개수를 반환합니다
func (uc *CrudUseCase) Count(ctx context.Context, endpoint string, params dto.ListParams, acl dto.AccessControl) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "CrudUseCase.Count")
	defer span.End()

	coll, caster, storage, err := uc.resolve(endpoint)
	if err != nil {
		return 0, err
	}

	filter, err := uc.buildFilter(coll, caster, params, acl)
	if err != nil {
		return 0, err
	}

	return uc.repo.Count(ctx, storage, filter)
}

// GetByID는 식별자로 문서 하나를 조회합니다
func (uc *CrudUseCase) GetByID(ctx context.Context, endpoint, id string, params dto.ListParams, acl dto.AccessControl) (bson.M, error) {
	ctx, span := tracing.StartSpan(ctx, "CrudUseCase.GetByID")
	defer span.End()
	tracing.SetAttributes(ctx,
		attribute.String("endpoint", endpoint),
		attribute.String("id", id),
	)

	coll, caster, storage, err := uc.resolve(endpoint)
	if err != nil {
		return nil, err
	}

	filter, err := uc.idFilter(coll, caster, id, params, acl)
	if err != nil {
		return nil, err
	}
	projection, err := crud.ResolveProjection(ctx, params.Projection, acl.ReadColumns, coll.FieldNames(), params.RawProjection)
	if err != nil {
		return nil, err
	}

	var document bson.M
	if coll.IsView() && len(coll.Lookups) > 0 {
		pipeline := uc.buildViewPipeline(coll, filter, projection, nil, 1, 0)
		documents, err := uc.repo.Aggregate(ctx, storage, pipeline)
		if err != nil {
			return nil, err
		}
		if len(documents) == 0 {
			return nil, apperrors.New(apperrors.ErrCodeNotFound, "document not found")
		}
		document = documents[0]
	} else {
		document, err = uc.repo.FindOne(ctx, storage, filter, projection)
		if err != nil {
			return nil, err
		}
	}

	if err := uc.cipher.DecryptDocument(ctx, coll, document); err != nil {
		return nil, err
	}
	return document, nil
}

// idFilter는 식별자 동등 조건에 상태 필터와 ACL 행 필터를 합성합니다
func (uc *CrudUseCase) idFilter(coll *definition.Collection, caster *crud.DefaultCaster, id string, params dto.ListParams, acl dto.AccessControl) (bson.M, error) {
	params.OtherParams = map[string]string{definition.IDField: id}
	params.Query = ""
	return uc.buildFilter(coll, caster, params, acl)
}

// buildViewPipeline은 뷰 정의의 lookupsModels로부터 읽기 파이프라인을
// 구성합니다. 각 lookup은 {value, label} 형태의 가상 필드가 됩니다.
func (uc *CrudUseCase) buildViewPipeline(coll *definition.Collection, filter bson.M, projection bson.M, sort bson.D, limit, skip int64) []bson.M {
	pipeline := []bson.M{}
	if len(filter) > 0 {
		pipeline = append(pipeline, bson.M{"$match": filter})
	}

	for _, lookup := range coll.Lookups {
		depStorage := lookup.Dependency
		if dep, err := uc.registry.Get(lookup.Dependency); err == nil {
			depStorage = dep.Name
		}

		pipeline = append(pipeline, bson.M{"$lookup": bson.M{
			"from":         depStorage,
			"localField":   lookup.LocalField,
			"foreignField": lookup.ForeignField,
			"as":           lookup.As,
		}})

		labelField := lookup.LabelField
		if labelField == "" {
			labelField = definition.IDField
		}
		mapped := bson.M{"$map": bson.M{
			"input": "$" + lookup.As,
			"in": bson.M{
				"value": "$$this." + definition.IDField,
				"label": "$$this." + labelField,
			},
		}}

		if lookup.Many {
			pipeline = append(pipeline, bson.M{"$set": bson.M{lookup.As: mapped}})
		} else {
			pipeline = append(pipeline, bson.M{"$set": bson.M{
				lookup.As: bson.M{"$arrayElemAt": []interface{}{mapped, 0}},
			}})
		}
	}

	if len(sort) > 0 {
		sortDoc := bson.M{}
		for _, e := range sort {
			sortDoc[e.Key] = e.Value
		}
		pipeline = append(pipeline, bson.M{"$sort": sortDoc})
	}
	if skip > 0 {
		pipeline = append(pipeline, bson.M{"$skip": skip})
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.M{"$limit": limit})
	}
	if len(projection) > 0 {
		pipeline = append(pipeline, bson.M{"$project": projection})
	}
	return pipeline
}

// ExportStream은 내보내기용 커서를 엽니다. 호출자가 커서를 닫아야 합니다.
func (uc *CrudUseCase) ExportStream(ctx context.Context, endpoint string, params dto.ListParams, acl dto.AccessControl) (*mongo.Cursor, *definition.Collection, error) {
	ctx, span := tracing.StartSpan(ctx, "CrudUseCase.ExportStream")
	defer span.End()

	coll, caster, storage, err := uc.resolve(endpoint)
	if err != nil {
		return nil, nil, err
	}

	filter, err := uc.buildFilter(coll, caster, params, acl)
	if err != nil {
		return nil, nil, err
	}
	projection, err := crud.ResolveProjection(ctx, params.Projection, acl.ReadColumns, coll.FieldNames(), params.RawProjection)
	if err != nil {
		return nil, nil, err
	}
	sort, err := parseSort(params.Sort)
	if err != nil {
		return nil, nil, err
	}

	var cursor *mongo.Cursor
	if coll.IsView() && len(coll.Lookups) > 0 {
		pipeline := uc.buildViewPipeline(coll, filter, projection, sort, params.Limit, params.Skip)
		cursor, err = uc.repo.AggregateStream(ctx, storage, pipeline)
	} else {
		cursor, err = uc.repo.FindAllStream(ctx, storage, filter, mongodb.FindOptions{
			Projection: projection,
			Sort:       sort,
			Limit:      params.Limit,
			Skip:       params.Skip,
		})
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		logger.Error(ctx, "failed to open export stream",
			logger.Collection(endpoint),
			zap.Error(err),
		)
		return nil, nil, err
	}
	return cursor, coll, nil
}

// DecryptRecord는 내보내기 스트림의 레코드에 복호화를 적용합니다
func (uc *CrudUseCase) DecryptRecord(ctx context.Context, coll *definition.Collection, record map[string]interface{}) error {
	return uc.cipher.DecryptDocument(ctx, coll, record)
}
