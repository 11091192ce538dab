package join

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mia-platform/crud-service-sub002/internal/domain/definition"
	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/metrics"
)

// Cardinality는 조인 결과의 형태를 결정합니다
type Cardinality string

const (
	OneToOne   Cardinality = "oneToOne"
	OneToMany  Cardinality = "oneToMany"
	ManyToMany Cardinality = "manyToMany"
)

// Specification은 하나의 조인 호출을 기술합니다. 요청마다 검증된 본문과
// 경로 파라미터로부터 구성되며 영속화되지 않습니다.
type Specification struct {
	From              string `json:"-"`
	To                string `json:"-"`
	AsField           string `json:"asField"`
	LocalField        string `json:"localField"`
	ForeignField      string `json:"foreignField"`
	FromQueryFilter   bson.M `json:"fromQueryFilter,omitempty"`
	ToQueryFilter     bson.M `json:"toQueryFilter,omitempty"`
	FromACLMatching   bson.M `json:"fromACLMatching,omitempty"`
	FromProjectBefore bson.M `json:"fromProjectBefore,omitempty"`
	FromProjectAfter  bson.M `json:"fromProjectAfter,omitempty"`
	ToProjectBefore   bson.M `json:"toProjectBefore,omitempty"`
	ToProjectAfter    bson.M `json:"toProjectAfter,omitempty"`
	ToMerge           bool   `json:"toMerge,omitempty"`
}

// endpointInfo는 엔드포인트 식별자에서 유도된 저장소 이름과 필드별 허용
// BSON 타입 태그입니다
type endpointInfo struct {
	storageName string
	compatible  map[string][]string
}

// Planner는 두 컬렉션 사이의 조인 집계 파이프라인을 구성합니다.
// 엔드포인트 테이블은 시작 시 한 번 구축되어 불변으로 공유됩니다.
type Planner struct {
	db        *mongo.Database
	endpoints map[string]endpointInfo
	metrics   *metrics.Metrics

	// 파이프라인 변수 이름. 프로세스 수명 동안 한 번 생성되어 문서 필드
	// 이름과 충돌하지 않고 클라이언트 입력의 영향을 받지 않습니다.
	bindVar string
}

// NewPlanner는 등록된 모든 컬렉션 정의로부터 플래너를 생성합니다.
// 알 수 없는 필드 타입은 호출 시점이 아니라 여기서 실패합니다.
func NewPlanner(db *mongo.Database, registry *definition.Registry) (*Planner, error) {
	endpoints := make(map[string]endpointInfo)
	for _, endpoint := range registry.Endpoints() {
		coll, err := registry.Get(endpoint)
		if err != nil {
			return nil, err
		}

		types, err := coll.FieldTypes()
		if err != nil {
			return nil, err
		}
		compatible := make(map[string][]string, len(types))
		for field, t := range types {
			tags, err := definition.CompatibleBSONTypes(t)
			if err != nil {
				return nil, err
			}
			compatible[field] = tags
		}

		storage := coll.Name
		if coll.IsView() {
			if source, err := registry.Get(coll.Source); err == nil {
				storage = source.Name
			}
		}
		endpoints[endpoint] = endpointInfo{storageName: storage, compatible: compatible}
	}

	return &Planner{
		db:        db,
		endpoints: endpoints,
		metrics:   metrics.GetMetrics(),
		bindVar:   "bound" + strings.ReplaceAll(uuid.NewString(), "-", ""),
	}, nil
}

// JoinOneToOne은 일대일 조인 파이프라인을 실행합니다
func (p *Planner) JoinOneToOne(ctx context.Context, spec Specification) (*Cursor, error) {
	return p.run(ctx, spec, OneToOne)
}

// JoinOneToMany는 일대다 조인 파이프라인을 실행합니다
func (p *Planner) JoinOneToMany(ctx context.Context, spec Specification) (*Cursor, error) {
	return p.run(ctx, spec, OneToMany)
}

// JoinManyToMany는 다대다 조인 파이프라인을 실행합니다
func (p *Planner) JoinManyToMany(ctx context.Context, spec Specification) (*Cursor, error) {
	return p.run(ctx, spec, ManyToMany)
}

func (p *Planner) run(ctx context.Context, spec Specification, cardinality Cardinality) (*Cursor, error) {
	start := time.Now()

	pipeline, fromStorage, err := p.buildPipeline(spec, cardinality)
	if err != nil {
		p.metrics.RecordJoinPipeline(string(cardinality), "error")
		return nil, err
	}

	cursor, err := p.db.Collection(fromStorage).Aggregate(ctx, pipeline)
	if err != nil {
		p.metrics.RecordJoinPipeline(string(cardinality), "error")
		logger.Error(ctx, "failed to execute join pipeline",
			logger.Endpoint(spec.From),
			logger.Field("to", spec.To),
			logger.Field("cardinality", string(cardinality)),
			logger.Field("error", err.Error()),
		)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseQuery, "join aggregation failed")
	}

	p.metrics.RecordJoinPipeline(string(cardinality), "success")
	logger.Debug(ctx, "join pipeline started",
		logger.Endpoint(spec.From),
		logger.Field("to", spec.To),
		logger.Field("cardinality", string(cardinality)),
		logger.Duration(time.Since(start)),
	)

	return &Cursor{cursor: cursor}, nil
}

// buildPipeline은 외부 파이프라인을 조립합니다. 단계 순서는
// fromQueryFilter, fromACLMatching, fromProjectBefore, $lookup,
// fromProjectAfter, 카디널리티별 결과 정형 순입니다. ACL 필터링은 필드
// 제거보다 먼저 수행되어 나중 프로젝션이 제거할 필드를 ACL 술어가 참조할
// 수 있습니다.
func (p *Planner) buildPipeline(spec Specification, cardinality Cardinality) ([]bson.M, string, error) {
	from, ok := p.endpoints[spec.From]
	if !ok {
		return nil, "", apperrors.Newf(apperrors.ErrCodeNotFound, "CRUD endpoint %q does not exist", spec.From)
	}
	to, ok := p.endpoints[spec.To]
	if !ok {
		return nil, "", apperrors.Newf(apperrors.ErrCodeNotFound, "CRUD endpoint %q does not exist", spec.To)
	}

	pipeline := make([]bson.M, 0, 8)
	if len(spec.FromQueryFilter) > 0 {
		pipeline = append(pipeline, bson.M{"$match": spec.FromQueryFilter})
	}
	if len(spec.FromACLMatching) > 0 {
		pipeline = append(pipeline, bson.M{"$match": spec.FromACLMatching})
	}
	if len(spec.FromProjectBefore) > 0 {
		pipeline = append(pipeline, bson.M{"$project": spec.FromProjectBefore})
	}

	pipeline = append(pipeline, p.buildLookupStage(spec, from, to, cardinality))

	if len(spec.FromProjectAfter) > 0 {
		pipeline = append(pipeline, bson.M{"$project": spec.FromProjectAfter})
	}

	if cardinality == OneToOne {
		pipeline = append(pipeline, p.buildOneToOneShaping(spec)...)
	}

	return pipeline, from.storageName, nil
}

// buildLookupStage는 상관 서브쿼리 $lookup 단계를 구성합니다.
//
// 바인딩된 변수의 런타임 타입이 from 쪽 필드에 선언된 호환 저장 타입에
// 속하지 않으면 매치 조건은 예외를 던지는 대신 항상 거짓으로 평가되어,
// 타입이 어긋난 조인은 조용히 빈 결과를 냅니다.
func (p *Planner) buildLookupStage(spec Specification, from, to endpointInfo, cardinality Cardinality) bson.M {
	localTypes := from.compatible[spec.LocalField]

	var comparison bson.M
	if cardinality == ManyToMany {
		// 바인딩된 배열 안의 멤버십 비교
		comparison = bson.M{"$in": bson.A{"$" + spec.ForeignField, "$$" + p.bindVar}}
	} else {
		comparison = bson.M{"$eq": bson.A{"$" + spec.ForeignField, "$$" + p.bindVar}}
	}

	alwaysFalse := bson.M{"$eq": bson.A{true, false}}
	guarded := alwaysFalse
	if len(localTypes) > 0 {
		guarded = bson.M{
			"$cond": bson.A{
				bson.M{"$in": bson.A{bson.M{"$type": "$$" + p.bindVar}, localTypes}},
				comparison,
				alwaysFalse,
			},
		}
	}

	var matchBody bson.M
	if len(spec.ToQueryFilter) > 0 {
		matchBody = bson.M{"$and": bson.A{spec.ToQueryFilter, bson.M{"$expr": guarded}}}
	} else {
		matchBody = bson.M{"$expr": guarded}
	}

	inner := make([]bson.M, 0, 4)
	if len(spec.ToProjectBefore) > 0 {
		inner = append(inner, bson.M{"$project": spec.ToProjectBefore})
	}
	inner = append(inner, bson.M{"$match": matchBody})
	if cardinality == OneToOne {
		inner = append(inner, bson.M{"$limit": 1})
	}
	if len(spec.ToProjectAfter) > 0 {
		inner = append(inner, bson.M{"$project": spec.ToProjectAfter})
	}

	return bson.M{"$lookup": bson.M{
		"from":     to.storageName,
		"let":      bson.M{p.bindVar: "$" + spec.LocalField},
		"pipeline": inner,
		"as":       spec.AsField,
	}}
}

// buildOneToOneShaping은 일대일 조인의 결과를 정형합니다.
// toMerge가 아니면 asField는 첫 원소 또는 명시적 null이 되고, toMerge면
// 첫 원소의 필드를 원본 문서에 접어 넣은 뒤 중간 배열 필드를 제거합니다.
// 빈 결과에서 $mergeObjects는 누락된 원소를 무시하므로 추가 필드가 생기지
// 않습니다.
func (p *Planner) buildOneToOneShaping(spec Specification) []bson.M {
	if spec.ToMerge {
		return []bson.M{
			{"$replaceRoot": bson.M{"newRoot": bson.M{"$mergeObjects": bson.A{
				bson.M{"$arrayElemAt": bson.A{"$" + spec.AsField, 0}},
				"$$ROOT",
			}}}},
			{"$project": bson.M{spec.AsField: 0}},
		}
	}

	return []bson.M{
		{"$replaceRoot": bson.M{"newRoot": bson.M{"$mergeObjects": bson.A{
			"$$ROOT",
			bson.M{spec.AsField: bson.M{"$ifNull": bson.A{
				bson.M{"$arrayElemAt": bson.A{"$" + spec.AsField, 0}},
				nil,
			}}},
		}}}},
	}
}
