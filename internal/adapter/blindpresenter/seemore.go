package blindpresenter

import "strings"

const (
	seeMorePadding  = 500
	zeroWidthSpace  = "\u200b"
	seeMoreMinLines = 12
)

// 카카오톡 '전체보기'가 뜨도록 첫 줄 뒤를 제로폭 문자로 채운다.
func applySeeMore(body, instruction string) string {
	if strings.TrimSpace(body) == "" {
		return body
	}
	head := strings.TrimSpace(instruction)

	var b strings.Builder
	b.Grow(len(head) + len(body) + seeMorePadding*len(zeroWidthSpace) + 1)
	b.WriteString(head)
	b.WriteString(strings.Repeat(zeroWidthSpace, seeMorePadding))
	if !strings.HasPrefix(body, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(body)
	return b.String()
}

// foldLong keeps short texts inline and folds long ones behind the see-more header.
func foldLong(header, body string) string {
	if strings.Count(body, "\n")+1 < seeMoreMinLines {
		if header == "" {
			return body
		}
		return header + "\n" + body
	}
	return applySeeMore(body, header)
}
