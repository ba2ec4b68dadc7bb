package backend

import (
	"bytes"
	"strings"
)

// lineBuffer 把任意切分的原始读取块重组为完整的行。
// JSON 行可能在任意字节处被读取边界切断，这里只做重组所需的最小缓冲，
// 不做任何重排。
type lineBuffer struct {
	buf []byte
}

// Feed 追加一个读取块，返回其中已完整的行（去掉行尾换行符，跳过空行）。
func (b *lineBuffer) Feed(chunk []byte) []string {
	b.buf = append(b.buf, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(b.buf, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(b.buf[:i]), "\r")
		b.buf = b.buf[i+1:]
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Flush 返回流结束时残留的最后一行（没有换行符收尾的情况）。
func (b *lineBuffer) Flush() []string {
	line := strings.TrimRight(string(b.buf), "\r\n")
	b.buf = nil
	if strings.TrimSpace(line) == "" {
		return nil
	}
	return []string{line}
}
