// File: internal/capture/js.go
package capture

// JavaScript snippets evaluated in the lesson page before rendering. All of
// them resolve (never reject) so a stubborn page degrades to a partial
// capture instead of an error.

// imageWaitJS awaits every <img> finishing (load or error), bounding each
// image by a timeout in milliseconds.
const imageWaitJS = `
(async () => {
	const imgs = Array.from(document.querySelectorAll('img'));
	await Promise.all(imgs.map(img => {
		if (img.complete) return Promise.resolve();
		return new Promise(resolve => {
			img.addEventListener('load', resolve, { once: true });
			img.addEventListener('error', resolve, { once: true });
			setTimeout(resolve, %d);
		});
	}));
	return imgs.length;
})()`

// steppedScrollJS walks the full document height in viewport-third steps with
// a dwell between steps, then returns to the top. The stepping is what
// triggers lazy-loaded content.
const steppedScrollJS = `
(async () => {
	const sleep = ms => new Promise(r => setTimeout(r, ms));
	const total = document.body.scrollHeight;
	const step = Math.max(1, Math.floor(window.innerHeight / 3));
	for (let y = 0; y <= total; y += step) {
		window.scrollTo(0, y);
		await sleep(%d);
	}
	window.scrollTo(0, 0);
	await sleep(500);
	return total;
})()`

// hideMinimapJS dismisses a code-minimap overlay that would otherwise sit on
// top of the captured content.
const hideMinimapJS = `
(() => {
	const candidates = [
		'[aria-label*="minimap" i]',
		'[title*="minimap" i]',
		'button[class*="minimap" i]',
		'.minimap-toggle',
		'[data-testid*="minimap" i]',
	];
	for (const sel of candidates) {
		const btn = document.querySelector(sel);
		if (btn) { btn.click(); return true; }
	}
	return false;
})()`
