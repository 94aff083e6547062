package service

import (
	"fmt"
	"strings"

	"solo_edu_backend/internal/util"
	"solo_edu_backend/pkg/logger"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

type PDFPage struct {
	PageNum int    `json:"page_num"`
	Text    string `json:"text"`
}

// PDFContent 按页索引的PDF文本
// FullText 中各页之间插入页标记，供内容抽取阶段定位小节边界
type PDFContent struct {
	FullText  string    `json:"full_text"`
	Pages     []PDFPage `json:"pages"`
	PageCount int       `json:"page_count"`
}

// PageMarker 第 n 页的分隔标记
func PageMarker(n int) string {
	return fmt.Sprintf("--- Page %d ---", n)
}

// PDFService 确定性PDF文本抽取，不涉及大模型
type PDFService struct{}

func NewPDFService() *PDFService {
	return &PDFService{}
}

// ExtractText 抽取PDF全文
// 文件无法打开或无可抽取文本时返回 ErrPDFExtractionFailed，不做重试
func (s *PDFService) ExtractText(path string) (*PDFContent, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", util.ErrPDFExtractionFailed, path, err)
	}
	defer f.Close()

	numPages := r.NumPage()
	content := &PDFContent{PageCount: numPages}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// 单页失败不致命，跳过该页
			logger.Log.Warn("PDF单页文本抽取失败", zap.String("file", path), zap.Int("page", i), zap.Error(err))
			continue
		}
		text = strings.TrimSpace(text)
		content.Pages = append(content.Pages, PDFPage{PageNum: i, Text: text})

		sb.WriteString(PageMarker(i))
		sb.WriteString("\n")
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	content.FullText = sb.String()
	if strings.TrimSpace(stripPageMarkers(content.FullText)) == "" {
		return nil, fmt.Errorf("%w: no extractable text in %s", util.ErrPDFExtractionFailed, path)
	}

	return content, nil
}

func stripPageMarkers(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	for _, line := range lines {
		if strings.HasPrefix(line, "--- Page ") && strings.HasSuffix(line, " ---") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
