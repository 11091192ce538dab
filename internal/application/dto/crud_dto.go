package dto

import "go.mongodb.org/mongo-driver/bson"

// ListParams는 목록형 조회의 예약 쿼리 파라미터들입니다
type ListParams struct {
	Query         string            // _q: MongoDB 스타일 필터 (JSON)
	Projection    string            // _p: 쉼표 구분 필드 목록
	RawProjection string            // _rawp: 집계 표현식 포함 프로젝션 (JSON)
	Sort          string            // _s: 쉼표 구분 정렬 필드, - 접두사는 내림차순
	Limit         int64             // _l
	Skip          int64             // _sk
	States        []string          // _st: 쉼표 구분 상태 목록
	OtherParams   map[string]string // 예약되지 않은 파라미터는 동등 비교 조건
}

// AccessControl은 요청 헤더에서 추출한 접근 제어 정보입니다
type AccessControl struct {
	Rows         []bson.M // 행 수준 필터 표현식들
	ReadColumns  []string // 읽기 허용 필드 목록 (비어 있으면 전체 허용)
	WriteColumns []string // 쓰기 허용 필드 목록 (비어 있으면 전체 허용)
	UserID       string
}

// CreateResult는 단건 생성 결과입니다
type CreateResult struct {
	ID string `json:"_id"`
}

// BulkResult는 일괄 생성 결과입니다
type BulkResult struct {
	IDs []string `json:"ids"`
}

// CountResult는 개수 조회 결과입니다
type CountResult struct {
	Count int64 `json:"count"`
}

// DeleteResult는 삭제 결과입니다
type DeleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

// ImportResult는 스트리밍 가져오기 결과입니다
type ImportResult struct {
	Imported int64 `json:"imported"`
}

// StateChangeRequest는 상태 전이 요청 본문입니다
type StateChangeRequest struct {
	StateTo string `json:"stateTo" binding:"required"`
}
