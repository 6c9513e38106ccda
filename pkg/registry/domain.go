// Package registry provides the host side of Odù calls: domain ids and an
// in-memory table of native functions.
package registry

import (
	"fmt"
	"strings"
)

// Domain identifies an Odù domain in CALL_ODU instructions.
type Domain uint8

// The sixteen principal Odù followed by the pseudo, infrastructure and
// application domains. Values are part of the bytecode format.
const (
	Ogbe     Domain = 0  // lifecycle
	Oyeku    Domain = 1  // exit, sleep
	Iwori    Domain = 2  // time
	Odi      Domain = 3  // files
	Irosu    Domain = 4  // console
	Owonrin  Domain = 5  // random
	Obara    Domain = 6  // math (additive)
	Okanran  Domain = 7  // errors
	Ogunda   Domain = 8  // arrays
	Osa      Domain = 9  // concurrency
	Ika      Domain = 10 // strings
	Oturupon Domain = 11 // math (subtractive)
	Otura    Domain = 12 // network
	Irete    Domain = 13 // crypto
	Ose      Domain = 14 // ui
	Ofun     Domain = 15 // permissions

	Coop  Domain = 16 // foreign function bridge
	Opele Domain = 17 // compound Odù

	Cpu     Domain = 18
	Gpu     Domain = 19
	Storage Domain = 20

	Backend  Domain = 21
	Frontend Domain = 22
	Crypto   Domain = 23
	Ml       Domain = 24
	GameDev  Domain = 25
	Iot      Domain = 26

	Ohun  Domain = 27 // audio
	Fidio Domain = 28 // video
)

var domainNames = [...]string{
	Ogbe:     "Ogbe",
	Oyeku:    "Oyeku",
	Iwori:    "Iwori",
	Odi:      "Odi",
	Irosu:    "Irosu",
	Owonrin:  "Owonrin",
	Obara:    "Obara",
	Okanran:  "Okanran",
	Ogunda:   "Ogunda",
	Osa:      "Osa",
	Ika:      "Ika",
	Oturupon: "Oturupon",
	Otura:    "Otura",
	Irete:    "Irete",
	Ose:      "Ose",
	Ofun:     "Ofun",
	Coop:     "Coop",
	Opele:    "Opele",
	Cpu:      "Cpu",
	Gpu:      "Gpu",
	Storage:  "Storage",
	Backend:  "Backend",
	Frontend: "Frontend",
	Crypto:   "Crypto",
	Ml:       "Ml",
	GameDev:  "GameDev",
	Iot:      "Iot",
	Ohun:     "Ohun",
	Fidio:    "Fidio",
}

var domainsByName = func() map[string]Domain {
	m := make(map[string]Domain, len(domainNames))
	for d, name := range domainNames {
		m[strings.ToLower(name)] = Domain(d)
	}
	return m
}()

func (d Domain) String() string {
	if int(d) < len(domainNames) {
		return domainNames[d]
	}
	return fmt.Sprintf("Domain(%d)", uint8(d))
}

// ParseDomain resolves a domain name case-insensitively.
func ParseDomain(name string) (Domain, error) {
	if d, ok := domainsByName[strings.ToLower(name)]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("unknown Odù domain %q", name)
}
