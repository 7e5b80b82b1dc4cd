package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mtsp/internal/handlers"
	"mtsp/internal/models"
	"mtsp/internal/services"
	"mtsp/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// fakeSignupService 记录收到的开通参数并返回预置结果
type fakeSignupService struct {
	params services.SignupParams
	result *services.SignupResult
	err    error
	calls  int
}

func (f *fakeSignupService) Signup(params services.SignupParams) (*services.SignupResult, error) {
	f.calls++
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func postJSON(t *testing.T, handler gin.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/businesses", bytes.NewReader(payload))
	c.Request.Header.Set("Content-Type", "application/json")

	handler(c)
	return w
}

// 平台管理端建企业必须走完整开通事务：企业、owner 与试用订阅一并创建
func TestBusinessCreateRunsFullOnboarding(t *testing.T) {
	businessID := uint(7)
	fake := &fakeSignupService{
		result: &services.SignupResult{
			Business: &models.Business{Name: "晨星科技", MaxSeats: 5, SeatCount: 1},
			Owner:    &models.User{Email: "owner@chenxing.cn", Role: models.RoleOwner, BusinessID: &businessID},
			Subscription: &models.Subscription{
				BusinessID: businessID,
				Status:     models.SubscriptionStatusTrial,
				TrialEnd: func() *time.Time {
					ts := time.Now().AddDate(0, 0, 14)
					return &ts
				}(),
			},
		},
	}
	handler := handlers.NewBusinessHandler(nil, nil, fake)

	w := postJSON(t, handler.Create, gin.H{
		"business_name":    "晨星科技",
		"industry":         "software",
		"owner_email":      "owner@chenxing.cn",
		"owner_password":   "Secret@123",
		"owner_first_name": "伟",
		"owner_last_name":  "陈",
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, fake.calls)
	require.Equal(t, "晨星科技", fake.params.BusinessName)
	require.Equal(t, "owner@chenxing.cn", fake.params.OwnerEmail)
	require.Equal(t, models.RoleOwner, fake.result.Owner.Role)
	require.Equal(t, models.SubscriptionStatusTrial, fake.result.Subscription.Status)

	var envelope struct {
		Code int `json:"code"`
		Data struct {
			Business     json.RawMessage `json:"business"`
			Owner        json.RawMessage `json:"owner"`
			Subscription json.RawMessage `json:"subscription"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, 200, envelope.Code)
	require.NotEmpty(t, envelope.Data.Owner, "返回结果必须包含 owner")
	require.NotEmpty(t, envelope.Data.Subscription, "返回结果必须包含订阅")
}

// 缺少 owner 字段的请求在绑定阶段被拒绝，不会创建空壳企业
func TestBusinessCreateRequiresOwner(t *testing.T) {
	fake := &fakeSignupService{}
	handler := handlers.NewBusinessHandler(nil, nil, fake)

	w := postJSON(t, handler.Create, gin.H{
		"business_name": "晨星科技",
		"industry":      "software",
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 0, fake.calls, "参数不全时不应触达开通事务")

	var envelope struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, 400, envelope.Code)
}

// 开通事务失败时错误码原样透传
func TestBusinessCreatePropagatesError(t *testing.T) {
	fake := &fakeSignupService{err: errors.NewDuplicateEmail("owner@chenxing.cn")}
	handler := handlers.NewBusinessHandler(nil, nil, fake)

	w := postJSON(t, handler.Create, gin.H{
		"business_name":    "晨星科技",
		"industry":         "software",
		"owner_email":      "owner@chenxing.cn",
		"owner_password":   "Secret@123",
		"owner_first_name": "伟",
		"owner_last_name":  "陈",
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, fake.calls)

	var envelope struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, errors.CodeDuplicateEmail, envelope.Code)
}
