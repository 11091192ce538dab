package usecase

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mia-platform/crud-service-sub002/internal/application/dto"
	"github.com/mia-platform/crud-service-sub002/internal/crud"
	"github.com/mia-platform/crud-service-sub002/internal/domain/definition"
	"github.com/mia-platform/crud-service-sub002/internal/infrastructure/messaging/kafka"
	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/tracing"
)

// writableFields는 쓰기 경로에서 허용되는 필드들을 계산합니다.
// ACL 쓰기 허용 목록이 있으면 그것이 상한이고, 없으면 예약 필드를 제외한
// 선언된 모든 필드입니다.
func writableFields(coll *definition.Collection, acl dto.AccessControl) []string {
	if len(acl.WriteColumns) > 0 {
		return acl.WriteColumns
	}

	reserved := map[string]bool{
		definition.IDField:        true,
		definition.StateField:     true,
		definition.CreatorIDField: true,
		definition.CreatedAtField: true,
		definition.UpdaterIDField: true,
		definition.UpdatedAtField: true,
	}

	names := coll.FieldNames()
	out := make([]string, 0, len(names))
	for _, name := range names {
		if !reserved[name] {
			out = append(out, name)
		}
	}
	return out
}

// prepareInsert는 삽입 본문을 검증, 변환, 스탬핑, 암호화합니다
func (uc *CrudUseCase) prepareInsert(ctx context.Context, endpoint string, coll *definition.Collection, caster *crud.DefaultCaster, body map[string]interface{}, acl dto.AccessControl) (bson.M, error) {
	if coll.IsView() {
		crud.RewriteLookupReferences(coll.Lookups, body)
	}

	writable := make(map[string]bool)
	for _, name := range writableFields(coll, acl) {
		writable[name] = true
	}
	for field := range body {
		if field == definition.StateField {
			continue
		}
		if !writable[field] {
			return nil, apperrors.Newf(apperrors.ErrCodeBadRequest, "field %s is not writable", field)
		}
	}

	if err := uc.registry.ValidateBody(endpoint, body); err != nil {
		return nil, err
	}
	if err := caster.CastDocument(body); err != nil {
		return nil, err
	}

	state := coll.DefaultState
	if raw, ok := body[definition.StateField]; ok {
		s, isString := raw.(string)
		if !isString || !definition.IsValidState(s) {
			return nil, apperrors.Newf(apperrors.ErrCodeBadRequest, "invalid state %v", raw)
		}
		state = s
	}

	now := time.Now()
	document := bson.M(body)
	document[definition.StateField] = state
	document[definition.CreatorIDField] = acl.UserID
	document[definition.CreatedAtField] = now
	document[definition.UpdaterIDField] = acl.UserID
	document[definition.UpdatedAtField] = now

	if err := uc.cipher.EncryptDocument(ctx, coll, document); err != nil {
		return nil, err
	}
	return document, nil
}

// Create는 문서 하나를 생성합니다
func (uc *CrudUseCase) Create(ctx context.Context, endpoint string, body map[string]interface{}, acl dto.AccessControl) (*dto.CreateResult, error) {
	ctx, span := tracing.StartSpan(ctx, "CrudUseCase.Create")
	defer span.End()
	tracing.SetAttributes(ctx, attribute.String("endpoint", endpoint))

	coll, caster, storage, err := uc.resolve(endpoint)
	if err != nil {
		return nil, err
	}

	document, err := uc.prepareInsert(ctx, endpoint, coll, caster, body, acl)
	if err != nil {
		return nil, err
	}

	insertedID, err := uc.repo.InsertOne(ctx, storage, document)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	id := idToString(insertedID)
	uc.publisher.Publish(ctx, kafka.EventRecordCreated, endpoint, id, body, acl.UserID)

	logger.Info(ctx, "document created",
		logger.Collection(endpoint),
		logger.DocumentID(id),
	)
	return &dto.CreateResult{ID: id}, nil
}

// CreateBulk는 문서 여러 개를 순서대로 생성합니다
func (uc *CrudUseCase) CreateBulk(ctx context.Context, endpoint string, bodies []map[string]interface{}, acl dto.AccessControl) (*dto.BulkResult, error) {
	ctx, span := tracing.StartSpan(ctx, "CrudUseCase.CreateBulk")
	defer span.End()
	tracing.SetAttributes(ctx,
		attribute.String("endpoint", endpoint),
		attribute.Int("count", len(bodies)),
	)

	if len(bodies) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeBadRequest, "bulk insert body must be a non-empty array")
	}

	coll, caster, storage, err := uc.resolve(endpoint)
	if err != nil {
		return nil, err
	}

	documents := make([]interface{}, 0, len(bodies))
	for i, body := range bodies {
		document, err := uc.prepareInsert(ctx, endpoint, coll, caster, body, acl)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.GetCode(err), fmt.Sprintf("record %d", i))
		}
		documents = append(documents, document)
	}

	insertedIDs, err := uc.repo.InsertMany(ctx, storage, documents)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	ids := make([]string, len(insertedIDs))
	for i, insertedID := range insertedIDs {
		ids[i] = idToString(insertedID)
		uc.publisher.Publish(ctx, kafka.EventRecordCreated, endpoint, ids[i], nil, acl.UserID)
	}

	logger.Info(ctx, "documents created",
		logger.Collection(endpoint),
		logger.Count(len(ids)),
	)
	return &dto.BulkResult{IDs: ids}, nil
}

// Patch는 문서 하나를 갱신하고 갱신된 문서를 반환합니다
func (uc *CrudUseCase) Patch(ctx context.Context, endpoint, id string, commands bson.M, params dto.ListParams, acl dto.AccessControl) (bson.M, error) {
	ctx, span := tracing.StartSpan(ctx, "CrudUseCase.Patch")
	defer span.End()
	tracing.SetAttributes(ctx,
		attribute.String("endpoint", endpoint),
		attribute.String("id", id),
	)

	coll, caster, storage, err := uc.resolve(endpoint)
	if err != nil {
		return nil, err
	}

	if coll.IsView() {
		crud.RewriteLookupReferences(coll.Lookups, map[string]interface{}(commands))
	}

	if err := caster.CastCommands(commands, writableFields(coll, acl)); err != nil {
		return nil, err
	}

	// 암호화 대상 필드는 $set 값도 암호문으로 저장되어야 합니다
	if setFields, ok := commands["$set"].(map[string]interface{}); ok {
		if err := uc.cipher.EncryptDocument(ctx, coll, setFields); err != nil {
			return nil, err
		}
	}

	set, ok := commands["$set"].(map[string]interface{})
	if !ok {
		set = map[string]interface{}{}
		commands["$set"] = set
	}
	set[definition.UpdaterIDField] = acl.UserID
	set[definition.UpdatedAtField] = time.Now()

	filter, err := uc.idFilter(coll, caster, id, params, acl)
	if err != nil {
		return nil, err
	}
	projection, err := crud.ResolveProjection(ctx, params.Projection, acl.ReadColumns, coll.FieldNames(), "")
	if err != nil {
		return nil, err
	}

	document, err := uc.repo.FindOneAndUpdate(ctx, storage, filter, commands, projection)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	// 뷰는 가상 필드를 포함한 형태로 다시 읽어 반환합니다
	if coll.IsView() && len(coll.Lookups) > 0 {
		document, err = uc.GetByID(ctx, endpoint, id, params, acl)
		if err != nil {
			return nil, err
		}
	} else if err := uc.cipher.DecryptDocument(ctx, coll, document); err != nil {
		return nil, err
	}

	uc.publisher.Publish(ctx, kafka.EventRecordUpdated, endpoint, id, nil, acl.UserID)

	logger.Info(ctx, "document updated",
		logger.Collection(endpoint),
		logger.DocumentID(id),
	)
	return document, nil
}

// ChangeState는 문서의 라이프사이클 상태를 전이합니다
func (uc *CrudUseCase) ChangeState(ctx context.Context, endpoint, id, stateTo string, acl dto.AccessControl) error {
	ctx, span := tracing.StartSpan(ctx, "CrudUseCase.ChangeState")
	defer span.End()
	tracing.SetAttributes(ctx,
		attribute.String("endpoint", endpoint),
		attribute.String("id", id),
		attribute.String("state_to", stateTo),
	)

	if !definition.IsValidState(stateTo) {
		return apperrors.Newf(apperrors.ErrCodeBadRequest, "invalid state %q", stateTo)
	}

	coll, caster, storage, err := uc.resolve(endpoint)
	if err != nil {
		return err
	}

	// 현재 상태를 알아야 전이 가능 여부를 판정할 수 있습니다
	params := dto.ListParams{States: []string{
		definition.StatePublic, definition.StateDraft, definition.StateTrash, definition.StateDeleted,
	}}
	filter, err := uc.idFilter(coll, caster, id, params, acl)
	if err != nil {
		return err
	}

	current, err := uc.repo.FindOne(ctx, storage, filter, bson.M{definition.StateField: 1})
	if err != nil {
		return err
	}

	stateFrom, _ := current[definition.StateField].(string)
	if !definition.CanTransition(stateFrom, stateTo) {
		return apperrors.Newf(apperrors.ErrCodeInvalidStateTransition,
			"transition from %s to %s is not allowed", stateFrom, stateTo)
	}

	update := bson.M{"$set": bson.M{
		definition.StateField:     stateTo,
		definition.UpdaterIDField: acl.UserID,
		definition.UpdatedAtField: time.Now(),
	}}
	// 판정 이후 상태가 바뀌었으면 갱신하지 않습니다
	guarded := combineFilters(filter, bson.M{definition.StateField: stateFrom})
	if _, err := uc.repo.FindOneAndUpdate(ctx, storage, guarded, update, bson.M{definition.IDField: 1}); err != nil {
		tracing.RecordError(ctx, err)
		return err
	}

	uc.publisher.Publish(ctx, kafka.EventRecordStateChanged, endpoint, id,
		map[string]interface{}{"stateFrom": stateFrom, "stateTo": stateTo}, acl.UserID)

	logger.Info(ctx, "document state changed",
		logger.Collection(endpoint),
		logger.DocumentID(id),
		zap.String("state_from", stateFrom),
		zap.String("state_to", stateTo),
	)
	return nil
}

// Delete는 문서 하나를 삭제합니다
func (uc *CrudUseCase) Delete(ctx context.Context, endpoint, id string, params dto.ListParams, acl dto.AccessControl) error {
	ctx, span := tracing.StartSpan(ctx, "CrudUseCase.Delete")
	defer span.End()
	tracing.SetAttributes(ctx,
		attribute.String("endpoint", endpoint),
		attribute.String("id", id),
	)

	coll, caster, storage, err := uc.resolve(endpoint)
	if err != nil {
		return err
	}

	filter, err := uc.idFilter(coll, caster, id, params, acl)
	if err != nil {
		return err
	}

	if err := uc.repo.DeleteOne(ctx, storage, filter); err != nil {
		tracing.RecordError(ctx, err)
		return err
	}

	uc.publisher.Publish(ctx, kafka.EventRecordDeleted, endpoint, id, nil, acl.UserID)

	logger.Info(ctx, "document deleted",
		logger.Collection(endpoint),
		logger.DocumentID(id),
	)
	return nil
}

func idToString(id interface{}) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
