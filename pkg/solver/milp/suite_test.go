package milp

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMILP(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "MILP Backend Suite")
}
