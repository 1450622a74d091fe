package normalize

import (
	"regexp"
	"strings"

	"mailsuite/backend/internal/domain"
)

var (
	// "Display Name <addr@host>" 形态
	angleAddrRe = regexp.MustCompile(`^\s*"?([^"<>]*?)"?\s*<\s*([^<>\s]+@[^<>\s]+)\s*>\s*$`)
	// 裸地址形态
	bareAddrRe = regexp.MustCompile(`^[^\s@<>]+@[^\s@<>]+\.[^\s@<>]+$`)
)

// ParseAddress 把单个地址输入解析为地址身份。
//
// 接受三种形态：裸地址字符串、"Display Name <addr>" 字符串、
// 带 name/email 类键的结构化对象。无法解析时退化为 Unknown 哨兵，
// 绝不报错。
func ParseAddress(v interface{}) domain.EmailAddress {
	switch t := v.(type) {
	case string:
		return parseAddressString(t)
	case map[string]interface{}:
		addr := pickString(t, "email", "address", "emailAddress", "mail")
		name := pickString(t, "name", "displayName", "display_name")
		if addr == "" {
			return domain.UnknownAddress()
		}
		if name == "" {
			name = addr
		}
		return domain.EmailAddress{Name: name, Address: addr}
	case domain.EmailAddress:
		return t
	default:
		return domain.UnknownAddress()
	}
}

// parseAddressString 解析字符串形态的地址。
// 裸地址的显示名就用地址本身。
func parseAddressString(s string) domain.EmailAddress {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.UnknownAddress()
	}

	if m := angleAddrRe.FindStringSubmatch(s); m != nil {
		name := strings.TrimSpace(m[1])
		if name == "" {
			name = m[2]
		}
		return domain.EmailAddress{Name: name, Address: m[2]}
	}

	if bareAddrRe.MatchString(s) {
		return domain.EmailAddress{Name: s, Address: s}
	}

	return domain.UnknownAddress()
}

// ParseAddressList 解析一到多个地址。
// 逗号分隔的字符串被拆成多个身份；数组逐项解析；单个对象包装成单元素列表。
func ParseAddressList(v interface{}) domain.AddressList {
	switch t := v.(type) {
	case string:
		return parseAddressListString(t)
	case []interface{}:
		out := make(domain.AddressList, 0, len(t))
		for _, item := range t {
			out = append(out, ParseAddress(item))
		}
		return out
	case []string:
		out := make(domain.AddressList, 0, len(t))
		for _, item := range t {
			out = append(out, ParseAddress(item))
		}
		return out
	case map[string]interface{}:
		return domain.AddressList{ParseAddress(t)}
	case nil:
		return nil
	default:
		return domain.AddressList{ParseAddress(t)}
	}
}

// parseAddressListString 拆分逗号连接的多地址字符串。
// 注意显示名里也可能有逗号（"Doe, Jane" <j@x>），按尖括号边界切。
func parseAddressListString(s string) domain.AddressList {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	parts := splitAddresses(s)
	out := make(domain.AddressList, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, parseAddressString(p))
	}
	return out
}

// splitAddresses 在尖括号和引号之外的逗号处切分。
func splitAddresses(s string) []string {
	var parts []string
	depth := 0
	inQuote := false
	start := 0
	for i, r := range s {
		switch r {
		case '"':
			inQuote = !inQuote
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 && !inQuote {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
