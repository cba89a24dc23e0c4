package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CallumBoase/PDF2Audio/api/handler"
	"github.com/CallumBoase/PDF2Audio/api/model"
	"github.com/CallumBoase/PDF2Audio/internal/document"
	"github.com/CallumBoase/PDF2Audio/internal/services"
	"github.com/CallumBoase/PDF2Audio/internal/tts"
	"github.com/CallumBoase/PDF2Audio/pkg/storage"
)

// stubTTSClient 测试用TTS客户端，返回可辨认的伪音频
type stubTTSClient struct{}

func (c *stubTTSClient) Synthesize(_ context.Context, text string) ([]byte, error) {
	return []byte("audio:" + text), nil
}

func (c *stubTTSClient) Name() string {
	return "stub"
}

// 测试环境配置
type testEnv struct {
	Router  *gin.Engine
	Storage storage.Storage
	Service *services.ConversionService
}

// 创建测试环境
func setupTestEnv(t *testing.T) *testEnv {
	// 设置测试模式
	gin.SetMode(gin.TestMode)

	// 创建本地存储
	fileStorage, err := storage.NewLocalStorage(storage.LocalConfig{
		Path: t.TempDir(),
	})
	require.NoError(t, err)

	// 创建文本分段器
	splitterConfig := document.DefaultSplitterConfig()
	splitterConfig.MaxChunkSize = 200
	splitter := document.NewTextSplitter(splitterConfig)

	// 测试用TTS工厂，不访问网络
	factory := func(opts ...tts.Option) (tts.Client, error) {
		cfg := tts.NewConfig(opts...)
		if cfg.APIKey == "" {
			return nil, tts.NewTTSError(tts.ErrCodeInvalidAPIKey, tts.ErrMsgInvalidAPIKey)
		}
		return &stubTTSClient{}, nil
	}

	// 创建转换服务
	conversionService := services.NewConversionService(
		fileStorage,
		document.NewTextNormalizer(),
		splitter,
		services.WithMaxWorkers(4),
		services.WithTimeout(10*time.Second),
		services.WithTTSClientFactory(factory),
		services.WithWorkDir(t.TempDir()),
	)

	// 创建API处理器并设置路由
	conversionHandler := handler.NewConversionHandler(conversionService)
	router := SetupRouter(conversionHandler)

	return &testEnv{
		Router:  router,
		Storage: fileStorage,
		Service: conversionService,
	}
}

// uploadFile 通过multipart请求上传文件
func uploadFile(t *testing.T, router *gin.Engine, filename, content string, fields map[string]string) *httptest.ResponseRecorder {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)

	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/conversions", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// parseResponse 解析通用响应结构
func parseResponse(t *testing.T, w *httptest.ResponseRecorder) *model.Response {
	var resp model.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return &resp
}

// TestConversionCreate 测试创建转换API
func TestConversionCreate(t *testing.T) {
	env := setupTestEnv(t)

	w := uploadFile(t, env.Router, "story.txt",
		"First paragraph of the story.\n\nSecond paragraph of the story.",
		map[string]string{
			"api_key": "sk-test",
			"voice":   "nova",
		})

	assert.Equal(t, http.StatusOK, w.Code)

	resp := parseResponse(t, w)
	assert.Equal(t, 0, resp.Code)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, data["id"])
	assert.Equal(t, "completed", data["status"])
	assert.Equal(t, "nova", data["voice"])
	assert.Equal(t, float64(100), data["progress"])
}

// TestConversionCreateMissingKey 测试没有密钥时创建被拒绝
func TestConversionCreateMissingKey(t *testing.T) {
	env := setupTestEnv(t)

	w := uploadFile(t, env.Router, "story.txt", "Some content.", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

// TestConversionCreateInvalidType 测试不支持的文件类型
func TestConversionCreateInvalidType(t *testing.T) {
	env := setupTestEnv(t)

	w := uploadFile(t, env.Router, "image.png", "not really an image",
		map[string]string{"api_key": "sk-test"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestConversionCreateInvalidVoice 测试无效音色被表单校验拦截
func TestConversionCreateInvalidVoice(t *testing.T) {
	env := setupTestEnv(t)

	w := uploadFile(t, env.Router, "story.txt", "Some content.",
		map[string]string{
			"api_key": "sk-test",
			"voice":   "siren",
		})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestConversionStatusAndList 测试状态查询与列表API
func TestConversionStatusAndList(t *testing.T) {
	env := setupTestEnv(t)

	w := uploadFile(t, env.Router, "story.txt", "Paragraph for status checks.",
		map[string]string{"api_key": "sk-test"})
	require.Equal(t, http.StatusOK, w.Code)

	data := parseResponse(t, w).Data.(map[string]interface{})
	id := data["id"].(string)

	// 状态查询
	req := httptest.NewRequest(http.MethodGet, "/api/conversions/"+id, nil)
	w = httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	statusData := parseResponse(t, w).Data.(map[string]interface{})
	assert.Equal(t, id, statusData["id"])
	assert.Equal(t, "completed", statusData["status"])

	// 列表查询
	req = httptest.NewRequest(http.MethodGet, "/api/conversions", nil)
	w = httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	listData := parseResponse(t, w).Data.(map[string]interface{})
	assert.Equal(t, float64(1), listData["total"])
}

// TestConversionStatusNotFound 测试查询不存在的转换
func TestConversionStatusNotFound(t *testing.T) {
	env := setupTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/conversions/no-such-id", nil)
	req.Header.Set("X-Trace-ID", "trace-notfound-1")
	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	// 错误响应由统一错误中间件渲染，携带请求的追踪ID
	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "未找到转换任务", resp.Message)
	assert.Equal(t, "trace-notfound-1", resp.TraceID)
}

// TestConversionAudioDownload 测试音频下载API
func TestConversionAudioDownload(t *testing.T) {
	env := setupTestEnv(t)

	w := uploadFile(t, env.Router, "story.txt", "Audio download paragraph.",
		map[string]string{"api_key": "sk-test"})
	require.Equal(t, http.StatusOK, w.Code)

	data := parseResponse(t, w).Data.(map[string]interface{})
	id := data["id"].(string)

	req := httptest.NewRequest(http.MethodGet, "/api/conversions/"+id+"/audio", nil)
	w = httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "Audio download paragraph.")
}

// TestConversionTextDownload 测试提取文本API
func TestConversionTextDownload(t *testing.T) {
	env := setupTestEnv(t)

	w := uploadFile(t, env.Router, "story.txt", "Readable text paragraph.",
		map[string]string{"api_key": "sk-test"})
	require.Equal(t, http.StatusOK, w.Code)

	data := parseResponse(t, w).Data.(map[string]interface{})
	id := data["id"].(string)

	req := httptest.NewRequest(http.MethodGet, "/api/conversions/"+id+"/text", nil)
	w = httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	textData := parseResponse(t, w).Data.(map[string]interface{})
	assert.Contains(t, textData["text"], "Readable text paragraph.")
}

// TestConversionDelete 测试删除转换API
func TestConversionDelete(t *testing.T) {
	env := setupTestEnv(t)

	w := uploadFile(t, env.Router, "story.txt", "Paragraph to delete.",
		map[string]string{"api_key": "sk-test"})
	require.Equal(t, http.StatusOK, w.Code)

	data := parseResponse(t, w).Data.(map[string]interface{})
	id := data["id"].(string)

	req := httptest.NewRequest(http.MethodDelete, "/api/conversions/"+id, nil)
	w = httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	deleteData := parseResponse(t, w).Data.(map[string]interface{})
	assert.Equal(t, true, deleteData["success"])

	// 删除后状态查询应返回404
	req = httptest.NewRequest(http.MethodGet, "/api/conversions/"+id, nil)
	w = httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestListVoices 测试音色列表API
func TestListVoices(t *testing.T) {
	env := setupTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/voices", nil)
	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := parseResponse(t, w).Data.(map[string]interface{})

	voices, ok := data["voices"].([]interface{})
	require.True(t, ok)
	assert.Len(t, voices, 6)
	assert.Contains(t, voices, "alloy")

	models, ok := data["models"].([]interface{})
	require.True(t, ok)
	assert.Len(t, models, 2)
}

// TestHealthCheck 测试健康检查API
func TestHealthCheck(t *testing.T) {
	env := setupTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}
