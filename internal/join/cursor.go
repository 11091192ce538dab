package join

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Cursor는 조인 파이프라인 결과에 대한 지연 소비형 커서입니다.
// 유한하며 한 번 소비하면 재시작할 수 없습니다. 스트리밍 도중 출력이
// 끊어지면 Close를 호출해 데이터베이스 자원을 해제해야 합니다.
type Cursor struct {
	cursor *mongo.Cursor
}

// Next는 다음 문서로 진행합니다
func (c *Cursor) Next(ctx context.Context) bool {
	return c.cursor.Next(ctx)
}

// Decode는 현재 문서를 디코딩합니다
func (c *Cursor) Decode(v interface{}) error {
	return c.cursor.Decode(v)
}

// Current는 현재 문서를 bson.M으로 반환합니다
func (c *Cursor) Current() (bson.M, error) {
	var doc bson.M
	if err := c.cursor.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// All은 남은 결과 전체를 읽습니다
func (c *Cursor) All(ctx context.Context, out interface{}) error {
	return c.cursor.All(ctx, out)
}

// Err는 순회 중 발생한 에러를 반환합니다
func (c *Cursor) Err() error {
	return c.cursor.Err()
}

// Close는 커서를 닫고 데이터베이스 자원을 해제합니다
func (c *Cursor) Close(ctx context.Context) error {
	return c.cursor.Close(ctx)
}
