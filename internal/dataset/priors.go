package dataset

import (
	"math"

	"github.com/dotnet/mbmlbook-sub000/internal/features"
)

// Gaussian is a normal distribution by mean and variance.
type Gaussian struct {
	Mean     float64
	Variance float64
}

// Gamma is a gamma distribution by shape and rate.
type Gamma struct {
	Shape float64
	Rate  float64
}

// Mean returns shape/rate, or zero for a degenerate rate.
func (g Gamma) Mean() float64 {
	if g.Rate == 0 {
		return 0
	}
	return g.Shape / g.Rate
}

const (
	defaultWeightVariance    = 1
	defaultThresholdVariance = 10
	defaultNoiseVariance     = 1
	defaultPrecisionShape    = 2
	defaultPrecisionRate     = 2
)

// Priors seed a per-user classifier: one weight per bucket plus a threshold.
type Priors struct {
	Weights       map[features.Bucket]Gaussian
	Threshold     Gaussian
	NoiseVariance float64
}

// CommunityPriors seed a classifier whose weights share a community mean and precision.
type CommunityPriors struct {
	WeightMeans      map[features.Bucket]Gaussian
	WeightPrecisions map[features.Bucket]Gamma
	Threshold        Gaussian
	NoiseVariance    float64
}

// Posteriors are what the inference engine learned for one user.
type Posteriors struct {
	Weights       map[features.Bucket]Gaussian
	Threshold     Gaussian
	NoiseVariance float64
}

// CommunityPosteriors are what the inference engine learned for a community.
type CommunityPosteriors struct {
	WeightMeans      map[features.Bucket]Gaussian
	WeightPrecisions map[features.Bucket]Gamma
	Threshold        Gaussian
	NoiseVariance    float64
}

// DefaultPriors puts a standard normal on every bucket of fs.
func DefaultPriors(fs *features.FeatureSet) *Priors {
	p := &Priors{
		Weights:       make(map[features.Bucket]Gaussian, fs.Len()),
		Threshold:     Gaussian{Mean: 0, Variance: defaultThresholdVariance},
		NoiseVariance: defaultNoiseVariance,
	}
	for _, b := range fs.Buckets() {
		p.Weights[b] = Gaussian{Mean: 0, Variance: defaultWeightVariance}
	}
	return p
}

// DefaultCommunityPriors puts broad priors on the community parameters of every bucket.
func DefaultCommunityPriors(fs *features.FeatureSet) *CommunityPriors {
	p := &CommunityPriors{
		WeightMeans:      make(map[features.Bucket]Gaussian, fs.Len()),
		WeightPrecisions: make(map[features.Bucket]Gamma, fs.Len()),
		Threshold:        Gaussian{Mean: 0, Variance: defaultThresholdVariance},
		NoiseVariance:    defaultNoiseVariance,
	}
	for _, b := range fs.Buckets() {
		p.WeightMeans[b] = Gaussian{Mean: 0, Variance: defaultWeightVariance}
		p.WeightPrecisions[b] = Gamma{Shape: defaultPrecisionShape, Rate: defaultPrecisionRate}
	}
	return p
}

// PersonalPriors turns community posteriors into priors for a new user. Each weight
// keeps the community mean, widened by the expected spread between users.
func (cp *CommunityPosteriors) PersonalPriors() *Priors {
	p := &Priors{
		Weights:       make(map[features.Bucket]Gaussian, len(cp.WeightMeans)),
		Threshold:     cp.Threshold,
		NoiseVariance: cp.NoiseVariance,
	}
	for b, mean := range cp.WeightMeans {
		spread := float64(defaultWeightVariance)
		if prec, ok := cp.WeightPrecisions[b]; ok && prec.Shape > 1 {
			spread = prec.Rate / (prec.Shape - 1)
		}
		p.Weights[b] = Gaussian{Mean: mean.Mean, Variance: mean.Variance + spread}
	}
	return p
}

// AsPosteriors predicts from priors alone, as for a user the engine has not trained on yet.
func (p *Priors) AsPosteriors() *Posteriors {
	weights := make(map[features.Bucket]Gaussian, len(p.Weights))
	for b, g := range p.Weights {
		weights[b] = g
	}
	return &Posteriors{Weights: weights, Threshold: p.Threshold, NoiseVariance: p.NoiseVariance}
}

// Predict returns the probability that the owner replies to inst under a probit model.
// Buckets without a learned weight contribute nothing.
func (p *Posteriors) Predict(inst *Instance) float64 {
	mean := -p.Threshold.Mean
	variance := p.Threshold.Variance + p.NoiseVariance
	for b, x := range inst.Values {
		w, ok := p.Weights[b]
		if !ok || x == 0 {
			continue
		}
		mean += w.Mean * x
		variance += w.Variance * x * x
	}
	if variance <= 0 {
		if mean > 0 {
			return 1
		}
		if mean < 0 {
			return 0
		}
		return 0.5
	}
	return normalCDF(mean / math.Sqrt(variance))
}

// ApplyPredictions stores the predicted reply probability of every instance on its message.
func (p *Posteriors) ApplyPredictions(u *User, ds *DataSet) {
	for _, inst := range ds.Instances {
		u.Mailbox.SetReplyProbability(inst.Message, p.Predict(inst))
	}
}

func normalCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}
