package util

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON 从大模型的自由文本输出中抢救出JSON值
// 恢复顺序：最长的代码围栏块 -> 完整响应体 -> 首个配平的JSON数组/对象
// 全部失败时返回携带原始文本的 ErrJSONRecoveryFailed
func ExtractJSON(raw string) (json.RawMessage, error) {
	// 1. 代码围栏块（```json 或无标签），取最长的一块
	if block := longestFencedBlock(raw); block != "" {
		if v := tryParse(block); v != nil {
			return v, nil
		}
	}

	// 2. 完整响应体
	if v := tryParse(raw); v != nil {
		return v, nil
	}

	// 3. 扫描首个配平的JSON片段，数组优先
	if frag, ok := scanBalanced(raw, '[', ']'); ok {
		if v := tryParse(frag); v != nil {
			return v, nil
		}
	}
	if frag, ok := scanBalanced(raw, '{', '}'); ok {
		if v := tryParse(frag); v != nil {
			return v, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrJSONRecoveryFailed, Truncate(raw, 500))
}

func tryParse(s string) json.RawMessage {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil
	}
	return json.RawMessage(s)
}

// longestFencedBlock 返回文本中最长的代码围栏内容，不存在时返回空串
func longestFencedBlock(raw string) string {
	var longest string
	rest := raw
	for {
		start := strings.Index(rest, "```")
		if start < 0 {
			break
		}
		rest = rest[start+3:]
		end := strings.Index(rest, "```")
		if end < 0 {
			break
		}
		block := rest[:end]
		rest = rest[end+3:]

		// 去掉围栏首行的语言标签（json 等）
		if nl := strings.IndexByte(block, '\n'); nl >= 0 {
			firstLine := strings.TrimSpace(block[:nl])
			if firstLine == "json" || firstLine == "JSON" || firstLine == "" {
				block = block[nl+1:]
			}
		}
		block = strings.TrimSpace(block)
		if len(block) > len(longest) {
			longest = block
		}
	}
	return longest
}

// scanBalanced 找到首个以 open 开始、括号配平的子串
// 跳过JSON字符串字面量内部的括号与转义字符
func scanBalanced(raw string, open, close byte) (string, bool) {
	start := strings.IndexByte(raw, open)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// 字符串内部的括号不计数
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

// Truncate 截取文本前 n 个字符
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
