package pkitest

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"net"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// Name is a GeneralName to be encoded into an extension.
type Name struct {
	tag   uint8
	value []byte
}

// DNS returns a dNSName.
func DNS(name string) Name { return Name{tag: 2, value: []byte(name)} }

// Email returns an rfc822Name.
func Email(addr string) Name { return Name{tag: 1, value: []byte(addr)} }

// URI returns a uniformResourceIdentifier.
func URI(uri string) Name { return Name{tag: 6, value: []byte(uri)} }

// IP returns an iPAddress holding a single address.
func IP(ip net.IP) Name {
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	return Name{tag: 7, value: append([]byte{}, ip...)}
}

// Subnet returns an iPAddress in the address-and-mask form used by name
// constraints, e.g. Subnet("10.0.0.0/8").
func Subnet(cidr string) Name {
	_, n, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(err)
	}
	ip := n.IP
	if v4 := ip.To4(); v4 != nil && len(n.Mask) == net.IPv4len {
		ip = v4
	}
	return Name{tag: 7, value: append(append([]byte{}, ip...), n.Mask...)}
}

// DirName returns a directoryName.
func DirName(name pkix.Name) Name {
	der, err := asn1.Marshal(name.ToRDNSequence())
	if err != nil {
		panic(err)
	}
	return Name{tag: 4, value: der}
}

// RawDirName returns a directoryName from a DER encoded Name.
func RawDirName(der []byte) Name { return Name{tag: 4, value: der} }

func (n Name) add(b *cryptobyte.Builder) {
	if n.tag == 4 {
		b.AddASN1(cbasn1.Tag(4).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
			b.AddBytes(n.value)
		})
		return
	}
	b.AddASN1(cbasn1.Tag(n.tag).ContextSpecific(), func(b *cryptobyte.Builder) {
		b.AddBytes(n.value)
	})
}

func addNames(b *cryptobyte.Builder, names []Name) {
	for _, n := range names {
		n.add(b)
	}
}

// DistributionPoint describes one cRLDistributionPoints entry.
type DistributionPoint struct {
	FullName []Name
	// Reasons is a ReasonFlags mask, bit i being reason i; zero omits the field.
	Reasons   uint16
	CRLIssuer []Name
}

// IssuingDistributionPoint describes the issuingDistributionPoint CRL extension.
type IssuingDistributionPoint struct {
	FullName []Name
	// RelativeName is a name relative to the CRL issuer, used when FullName is empty.
	RelativeName               []pkix.AttributeTypeAndValue
	OnlyContainsUserCerts      bool
	OnlyContainsCACerts        bool
	OnlySomeReasons            uint16
	IndirectCRL                bool
	OnlyContainsAttributeCerts bool
}

func addReasonFlags(b *cryptobyte.Builder, tag cbasn1.Tag, mask uint16) {
	high := 0
	for i := 0; i < 16; i++ {
		if mask&(1<<uint(i)) != 0 {
			high = i
		}
	}
	data := make([]byte, high/8+1)
	for i := 0; i <= high; i++ {
		if mask&(1<<uint(i)) != 0 {
			data[i/8] |= 0x80 >> uint(i%8)
		}
	}
	b.AddASN1(tag, func(b *cryptobyte.Builder) {
		b.AddUint8(uint8(7 - high%8))
		b.AddBytes(data)
	})
}

func addFullName(b *cryptobyte.Builder, names []Name) {
	b.AddASN1(cbasn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.Tag(0).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
			addNames(b, names)
		})
	})
}

func addImplicitBool(b *cryptobyte.Builder, tag int, v bool) {
	if !v {
		return
	}
	b.AddASN1(cbasn1.Tag(tag).ContextSpecific(), func(b *cryptobyte.Builder) {
		b.AddUint8(0xff)
	})
}
