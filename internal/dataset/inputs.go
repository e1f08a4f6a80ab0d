package dataset

import (
	"github.com/dotnet/mbmlbook-sub000/internal/features"
	"github.com/dotnet/mbmlbook-sub000/internal/mailbox"
)

const (
	TrainName              = "Train"
	ValidationName         = "Validation"
	TestName               = "Test"
	TrainAndValidationName = "TrainAndValidation"
)

// Inputs are the three data sets handed to the inference engine. All share one feature set.
type Inputs struct {
	FeatureSet *features.FeatureSet
	Train      *DataSet
	Validation *DataSet
	Test       *DataSet

	trainAndValidation *DataSet
}

// BuildInputs turns the user's partitions into data sets over fs.
func BuildInputs(u *User, fs *features.FeatureSet, includeSharedFeatures bool) *Inputs {
	build := func(name string, ids []mailbox.MessageID) *DataSet {
		instances := make([]*Instance, 0, len(ids))
		for _, id := range ids {
			instances = append(instances, FromMessage(id, u, fs, includeSharedFeatures))
		}
		return New(name, fs, instances)
	}

	return &Inputs{
		FeatureSet: fs,
		Train:      build(TrainName, u.TrainMessages),
		Validation: build(ValidationName, u.ValidationMessages),
		Test:       build(TestName, u.TestMessages),
	}
}

// TrainAndValidation concatenates the train and validation sets. Built once.
func (in *Inputs) TrainAndValidation() *DataSet {
	if in.trainAndValidation != nil {
		return in.trainAndValidation
	}
	instances := make([]*Instance, 0, in.Train.Count()+in.Validation.Count())
	instances = append(instances, in.Train.Instances...)
	instances = append(instances, in.Validation.Instances...)
	in.trainAndValidation = New(TrainAndValidationName, in.FeatureSet, instances)
	return in.trainAndValidation
}

// DataSets returns train, validation and test in that order.
func (in *Inputs) DataSets() []*DataSet {
	return []*DataSet{in.Train, in.Validation, in.Test}
}

func (in *Inputs) Equal(other *Inputs) bool {
	if in == other {
		return true
	}
	if in == nil || other == nil || !in.FeatureSet.Equal(other.FeatureSet) {
		return false
	}
	return in.Train.Equal(other.Train) && in.Validation.Equal(other.Validation) && in.Test.Equal(other.Test)
}
