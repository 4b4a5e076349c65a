package grab_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rafidiit-ops/ReverseGoGo/internal/log"
)

func TestGrab(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Grab Suite")
}

var _ = BeforeSuite(func() {
	log.Discard()
})
