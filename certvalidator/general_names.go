// Package certvalidator provides X.509 certificate path validation.
// This file contains GeneralName decoding shared by the extension accessors.
package certvalidator

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"net"
	"strings"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// GeneralNameTag is the context-specific tag number of a GeneralName choice.
type GeneralNameTag int

const (
	GeneralNameOther         GeneralNameTag = 0
	GeneralNameRFC822        GeneralNameTag = 1
	GeneralNameDNS           GeneralNameTag = 2
	GeneralNameX400          GeneralNameTag = 3
	GeneralNameDirectory     GeneralNameTag = 4
	GeneralNameEDIParty      GeneralNameTag = 5
	GeneralNameURI           GeneralNameTag = 6
	GeneralNameIP            GeneralNameTag = 7
	GeneralNameRegisteredID  GeneralNameTag = 8
	generalNameTagsAvailable                = 9
)

// GeneralName is one decoded entry of a GeneralNames sequence.
//
// Value holds the tag contents: the IA5 string bytes for rfc822Name, dNSName and
// uniformResourceIdentifier, the octets for iPAddress, and the DER of the Name
// for directoryName.
type GeneralName struct {
	Tag   GeneralNameTag
	Value []byte
}

// DNSGeneralName builds a dNSName entry.
func DNSGeneralName(name string) GeneralName {
	return GeneralName{Tag: GeneralNameDNS, Value: []byte(name)}
}

// EmailGeneralName builds an rfc822Name entry.
func EmailGeneralName(addr string) GeneralName {
	return GeneralName{Tag: GeneralNameRFC822, Value: []byte(addr)}
}

// URIGeneralName builds a uniformResourceIdentifier entry.
func URIGeneralName(uri string) GeneralName {
	return GeneralName{Tag: GeneralNameURI, Value: []byte(uri)}
}

// IPGeneralName builds an iPAddress entry. A non-nil mask produces the
// address-and-mask form used in name constraints.
func IPGeneralName(ip net.IP, mask net.IPMask) GeneralName {
	if v4 := ip.To4(); v4 != nil && (mask == nil || len(mask) == net.IPv4len) {
		ip = v4
	}
	out := append([]byte{}, ip...)
	if mask != nil {
		out = append(out, mask...)
	}
	return GeneralName{Tag: GeneralNameIP, Value: out}
}

// DirectoryGeneralName builds a directoryName entry from a distinguished name.
func DirectoryGeneralName(name pkix.RDNSequence) (GeneralName, error) {
	der, err := asn1.Marshal(name)
	if err != nil {
		return GeneralName{}, err
	}
	return GeneralName{Tag: GeneralNameDirectory, Value: der}, nil
}

// DirectoryName decodes the Name carried by a directoryName entry.
func (g GeneralName) DirectoryName() (pkix.RDNSequence, error) {
	if g.Tag != GeneralNameDirectory {
		return nil, fmt.Errorf("general name tag %d is not a directory name", g.Tag)
	}
	return parseRDNSequence(g.Value)
}

// String renders the name for messages.
func (g GeneralName) String() string {
	switch g.Tag {
	case GeneralNameRFC822:
		return "email:" + string(g.Value)
	case GeneralNameDNS:
		return "dns:" + string(g.Value)
	case GeneralNameURI:
		return "uri:" + string(g.Value)
	case GeneralNameIP:
		switch len(g.Value) {
		case net.IPv4len, net.IPv6len:
			return "ip:" + net.IP(g.Value).String()
		case 2 * net.IPv4len, 2 * net.IPv6len:
			half := len(g.Value) / 2
			n := net.IPNet{IP: g.Value[:half], Mask: g.Value[half:]}
			return "ip:" + n.String()
		}
		return fmt.Sprintf("ip:%x", g.Value)
	case GeneralNameDirectory:
		if rdn, err := g.DirectoryName(); err == nil {
			return "dn:" + rdn.String()
		}
	}
	return fmt.Sprintf("[%d]%x", g.Tag, g.Value)
}

// Equal reports whether both entries carry the same tag and contents.
func (g GeneralName) Equal(other GeneralName) bool {
	if g.Tag != other.Tag {
		return false
	}
	if g.Tag == GeneralNameDirectory {
		a, errA := g.DirectoryName()
		b, errB := other.DirectoryName()
		if errA == nil && errB == nil {
			return namesEqual(a, b)
		}
	}
	if g.Tag == GeneralNameDNS || g.Tag == GeneralNameRFC822 {
		return strings.EqualFold(string(g.Value), string(other.Value))
	}
	return string(g.Value) == string(other.Value)
}

// readGeneralNames decodes the contents of a GeneralNames SEQUENCE whose outer
// tag has already been consumed.
func readGeneralNames(body cryptobyte.String) ([]GeneralName, error) {
	var out []GeneralName
	for !body.Empty() {
		gn, err := readGeneralName(&body)
		if err != nil {
			return nil, err
		}
		out = append(out, gn)
	}
	return out, nil
}

func readGeneralName(s *cryptobyte.String) (GeneralName, error) {
	var (
		value cryptobyte.String
		tag   cbasn1.Tag
	)
	if !s.ReadAnyASN1(&value, &tag) {
		return GeneralName{}, fmt.Errorf("invalid general name encoding")
	}
	if tag&0xc0 != 0x80 {
		return GeneralName{}, fmt.Errorf("general name is not context-specific (tag 0x%x)", uint8(tag))
	}
	num := GeneralNameTag(tag & 0x1f)
	if num >= generalNameTagsAvailable {
		return GeneralName{}, fmt.Errorf("unknown general name tag %d", num)
	}
	if num == GeneralNameDirectory {
		// directoryName is explicitly tagged because Name is a CHOICE.
		var name cryptobyte.String
		if !value.ReadASN1Element(&name, cbasn1.SEQUENCE) || !value.Empty() {
			return GeneralName{}, fmt.Errorf("invalid directory name")
		}
		if _, err := parseRDNSequence(name); err != nil {
			return GeneralName{}, err
		}
		return GeneralName{Tag: num, Value: []byte(name)}, nil
	}
	return GeneralName{Tag: num, Value: []byte(value)}, nil
}

// parseRDNSequence decodes a DER Name.
func parseRDNSequence(der []byte) (pkix.RDNSequence, error) {
	var rdn pkix.RDNSequence
	rest, err := asn1.Unmarshal(der, &rdn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse distinguished name: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("trailing data after distinguished name")
	}
	return rdn, nil
}
