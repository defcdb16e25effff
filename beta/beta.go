// Package beta implements the regularized incomplete beta function and
// its inverse. These two routines are the numeric core of the sampler:
// drawing from Beta(a, b) is done by pushing a uniform draw through
// InvIbeta, and reporting uses the closed-form posterior mean, so this
// is the only special-function code the project needs.
//
// Both routines follow the classic Numerical Recipes formulation:
// a continued-fraction expansion for I_x(a, b) and a Halley iteration
// with an asymptotic initial guess for the inverse. Accuracy is well
// below 1e-6 relative error across the shape parameters produced by
// realistic run counts, including the no-observation case a = b = 1.
package beta

import "math"

const (
	// The continued fraction needs roughly sqrt(max(a,b)) terms near the
	// distribution mode, so the cap covers shape parameters into the
	// low millions of observations.
	cfMaxIterations = 10000
	cfEpsilon       = 3.0e-14
	cfTiny          = 1.0e-300

	invEpsilon = 1.0e-10
	invMaxIter = 16
)

// Ibeta returns the regularized incomplete beta function I_x(a, b),
// the CDF of the Beta(a, b) distribution evaluated at x.
//
// Requires a > 0 and b > 0. Arguments of x outside [0, 1] clamp to the
// respective boundary value.
func Ibeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}

	// Prefactor x^a (1-x)^b / (a B(a,b)), computed in log space.
	front := math.Exp(logBeta(a, b) + a*math.Log(x) + b*math.Log(1-x))

	// The continued fraction converges fastest below the distribution
	// mode; use the symmetry relation on the other side.
	if x < (a+1)/(a+b+2) {
		return front * betacf(a, b, x) / a
	}
	return 1 - front*betacf(b, a, 1-x)/b
}

// InvIbeta returns x such that Ibeta(a, b, x) = p, i.e. the quantile
// function of the Beta(a, b) distribution.
//
// Requires a > 0 and b > 0. Values of p outside (0, 1) clamp to the
// respective boundary.
func InvIbeta(a, b, p float64) float64 {
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return 1
	}

	x := invGuess(a, b, p)
	a1 := a - 1
	b1 := b - 1
	afac := logBeta(a, b)

	// Halley's method on f(x) = Ibeta(a,b,x) - p. The derivative is the
	// beta density, available in closed form, so each step is cheap.
	for j := 0; j < invMaxIter; j++ {
		if x == 0 || x == 1 {
			return x
		}
		err := Ibeta(a, b, x) - p
		t := math.Exp(a1*math.Log(x) + b1*math.Log(1-x) + afac)
		u := err / t
		t = u / (1 - 0.5*math.Min(1, u*(a1/x-b1/(1-x))))
		x -= t
		if x <= 0 {
			x = 0.5 * (x + t)
		}
		if x >= 1 {
			x = 0.5 * (x + t + 1)
		}
		if math.Abs(t) < invEpsilon*x && j > 0 {
			break
		}
	}
	return x
}

// invGuess produces the starting point for the Halley iteration.
func invGuess(a, b, p float64) float64 {
	if a >= 1 && b >= 1 {
		// Normal approximation (Abramowitz & Stegun 26.5.22).
		pp := p
		if p >= 0.5 {
			pp = 1 - p
		}
		t := math.Sqrt(-2 * math.Log(pp))
		x := (2.30753+t*0.27061)/(1+t*(0.99229+t*0.04481)) - t
		if p < 0.5 {
			x = -x
		}
		al := (x*x - 3) / 6
		h := 2 / (1/(2*a-1) + 1/(2*b-1))
		w := (x*math.Sqrt(al+h)/h - (1/(2*b-1)-1/(2*a-1))*(al+5.0/6.0-2/(3*h)))
		return a / (a + b*math.Exp(2*w))
	}

	// Small-shape branch: match the leading tail behavior on each side.
	lna := math.Log(a / (a + b))
	lnb := math.Log(b / (a + b))
	t := math.Exp(a*lna) / a
	u := math.Exp(b*lnb) / b
	w := t + u
	if p < t/w {
		return math.Pow(a*w*p, 1/a)
	}
	return 1 - math.Pow(b*w*(1-p), 1/b)
}

// betacf evaluates the continued fraction for the incomplete beta
// function by the modified Lentz method.
func betacf(a, b, x float64) float64 {
	qab := a + b
	qap := a + 1
	qam := a - 1

	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < cfTiny {
		d = cfTiny
	}
	d = 1 / d
	h := d

	for m := 1; m <= cfMaxIterations; m++ {
		fm := float64(m)
		m2 := 2 * fm

		// Even step.
		aa := fm * (b - fm) * x / ((qam + m2) * (a + m2))
		d = 1 + aa*d
		if math.Abs(d) < cfTiny {
			d = cfTiny
		}
		c = 1 + aa/c
		if math.Abs(c) < cfTiny {
			c = cfTiny
		}
		d = 1 / d
		h *= d * c

		// Odd step.
		aa = -(a + fm) * (qab + fm) * x / ((a + m2) * (qap + m2))
		d = 1 + aa*d
		if math.Abs(d) < cfTiny {
			d = cfTiny
		}
		c = 1 + aa/c
		if math.Abs(c) < cfTiny {
			c = cfTiny
		}
		d = 1 / d
		del := d * c
		h *= del

		if math.Abs(del-1) < cfEpsilon {
			break
		}
	}
	return h
}

// logBeta returns -ln B(a, b) = ln Γ(a+b) - ln Γ(a) - ln Γ(b).
func logBeta(a, b float64) float64 {
	lgab, _ := math.Lgamma(a + b)
	lga, _ := math.Lgamma(a)
	lgb, _ := math.Lgamma(b)
	return lgab - lga - lgb
}
